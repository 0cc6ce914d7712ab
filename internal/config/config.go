// Package config loads the static service configuration. Values come from an
// optional YAML file named by CONFIG_FILE, then environment variables (with a
// .env file loaded by the binaries) override individual keys.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is read once at process start and never mutated afterwards.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Models   ModelsConfig   `yaml:"models"`
	Cache    CacheConfig    `yaml:"cache"`
	Storage  StorageConfig  `yaml:"storage"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	MaxFileSize int64  `yaml:"max_file_size"`
}

// PipelineConfig sizes the chunker, the worker pool and the stage deadlines.
type PipelineConfig struct {
	MaxChunkDuration            time.Duration `yaml:"max_chunk_duration"`
	MaxConcurrentTranscriptions int           `yaml:"max_concurrent_transcriptions"`
	MaxConcurrentAnalyses       int           `yaml:"max_concurrent_analyses"`
	StageTimeout                time.Duration `yaml:"stage_timeout"`
	TempDir                     string        `yaml:"temp_dir"`
	FFmpegPath                  string        `yaml:"ffmpeg_path"`
}

// WorkerPoolSize is the shared pool size: transcriptions plus analyses.
func (p PipelineConfig) WorkerPoolSize() int {
	return p.MaxConcurrentTranscriptions + p.MaxConcurrentAnalyses
}

type ModelsConfig struct {
	SpeechURL      string        `yaml:"speech_url"`
	InferenceURL   string        `yaml:"inference_url"`
	APIKey         string        `yaml:"api_key"`
	Whisper        string        `yaml:"whisper"`
	Language       string        `yaml:"language"`
	BeamSize       int           `yaml:"beam_size"`
	Sentiment      string        `yaml:"sentiment"`
	Summarizer     string        `yaml:"summarizer"`
	Emotion        string        `yaml:"emotion"`
	ZeroShot       string        `yaml:"zero_shot"`
	Device         string        `yaml:"device"`
	ComputeType    string        `yaml:"compute_type"`
	MaxLength      int           `yaml:"max_length"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LoadTimeout    time.Duration `yaml:"load_timeout"`
	Categories     []string      `yaml:"categories"`
	Tones          []string      `yaml:"tones"`
}

type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
	AnalysisDir string `yaml:"analysis_dir"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			MaxFileSize: 25 * 1024 * 1024,
		},
		Pipeline: PipelineConfig{
			MaxChunkDuration:            180 * time.Second,
			MaxConcurrentTranscriptions: 2,
			MaxConcurrentAnalyses:       4,
			StageTimeout:                180 * time.Second,
			TempDir:                     os.TempDir(),
		},
		Models: ModelsConfig{
			SpeechURL:      "http://localhost:9000",
			InferenceURL:   "http://localhost:8080",
			Whisper:        "tiny",
			Language:       "es",
			BeamSize:       3,
			Sentiment:      "nlptown/bert-base-multilingual-uncased-sentiment",
			Summarizer:     "facebook/bart-large-cnn",
			Emotion:        "SamLowe/roberta-base-go_emotions",
			ZeroShot:       "facebook/bart-large-mnli",
			Device:         "cpu",
			ComputeType:    "int8",
			MaxLength:      256,
			RequestTimeout: 120 * time.Second,
			LoadTimeout:    30 * time.Second,
			Categories:     []string{"CONSULTA", "RECLAMO", "SOLICITUD", "INFORMACIÓN", "QUEJA"},
			Tones:          []string{"PROFESIONAL", "EMPÁTICO", "NEUTRAL", "DEFENSIVO", "AGRESIVO"},
		},
		Cache: CacheConfig{
			TTL: 1800 * time.Second,
		},
		Storage: StorageConfig{
			AnalysisDir: "analysis",
		},
		Kafka: KafkaConfig{
			Topic: "call-audits",
		},
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE and the
// environment, then validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Pipeline.TempDir, "TEMP_DIR")
	setString(&c.Pipeline.FFmpegPath, "FFMPEG_PATH")
	setString(&c.Models.SpeechURL, "SPEECH_URL")
	setString(&c.Models.InferenceURL, "INFERENCE_URL")
	setString(&c.Models.APIKey, "INFERENCE_API_KEY")
	setString(&c.Models.Whisper, "WHISPER_MODEL")
	setString(&c.Models.Language, "WHISPER_LANGUAGE")
	setString(&c.Models.Sentiment, "SENTIMENT_MODEL")
	setString(&c.Models.Summarizer, "SUMMARIZER_MODEL")
	setString(&c.Models.Emotion, "EMOTION_MODEL")
	setString(&c.Models.ZeroShot, "ZERO_SHOT_MODEL")
	setString(&c.Models.Device, "MODEL_DEVICE")
	setString(&c.Models.ComputeType, "MODEL_COMPUTE_TYPE")
	setString(&c.Cache.RedisAddr, "REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "REDIS_PASSWORD")
	setString(&c.Storage.DatabaseURL, "DATABASE_URL")
	setString(&c.Storage.AnalysisDir, "ANALYSIS_DIR")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	setList(&c.Kafka.Brokers, "KAFKA_BROKERS")
	setList(&c.Models.Categories, "CALL_CATEGORIES")
	setList(&c.Models.Tones, "AGENT_TONES")

	for _, f := range []func() error{
		func() error { return setInt64(&c.Server.MaxFileSize, "MAX_FILE_SIZE") },
		func() error { return setInt(&c.Pipeline.MaxConcurrentTranscriptions, "MAX_CONCURRENT_TRANSCRIPTIONS") },
		func() error { return setInt(&c.Pipeline.MaxConcurrentAnalyses, "MAX_CONCURRENT_ANALYSES") },
		func() error { return setInt(&c.Models.BeamSize, "WHISPER_BEAM_SIZE") },
		func() error { return setInt(&c.Models.MaxLength, "MODEL_MAX_LENGTH") },
		func() error { return setInt(&c.Cache.RedisDB, "REDIS_DB") },
		func() error { return setSeconds(&c.Pipeline.MaxChunkDuration, "MAX_CHUNK_DURATION") },
		func() error { return setSeconds(&c.Pipeline.StageTimeout, "PROCESSING_TIMEOUT") },
		func() error { return setSeconds(&c.Cache.TTL, "CACHE_TTL") },
		func() error { return setSeconds(&c.Models.RequestTimeout, "MODEL_REQUEST_TIMEOUT") },
		func() error { return setSeconds(&c.Models.LoadTimeout, "MODEL_LOAD_TIMEOUT") },
	} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks value ranges. Zero stage timeout disables the deadline.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Server.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", c.Server.MaxFileSize)
	}
	if c.Pipeline.MaxChunkDuration < time.Second {
		return fmt.Errorf("max_chunk_duration must be at least 1s, got %s", c.Pipeline.MaxChunkDuration)
	}
	if c.Pipeline.MaxConcurrentTranscriptions < 1 {
		return fmt.Errorf("max_concurrent_transcriptions must be at least 1, got %d", c.Pipeline.MaxConcurrentTranscriptions)
	}
	if c.Pipeline.MaxConcurrentAnalyses < 1 {
		return fmt.Errorf("max_concurrent_analyses must be at least 1, got %d", c.Pipeline.MaxConcurrentAnalyses)
	}
	if c.Pipeline.StageTimeout < 0 {
		return fmt.Errorf("stage_timeout cannot be negative")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.Cache.TTL)
	}
	if len(c.Models.Categories) == 0 {
		return fmt.Errorf("categories cannot be empty")
	}
	if len(c.Models.Tones) == 0 {
		return fmt.Errorf("tones cannot be empty")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

// setSeconds accepts a bare number of seconds, as the original settings did,
// or a Go duration string.
func setSeconds(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, v)
	}
	*dst = d
	return nil
}
