package speech

import "time"

// GoogleTTSConfig 配置 Google Cloud TTS 提供商。
type GoogleTTSConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	BaseURL string        `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// ElevenLabsConfig 配置 ElevenLabs TTS 提供商。
type ElevenLabsConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	BaseURL string        `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty" env:"MODEL"` // eleven_multilingual_v2
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// OpenAITTSConfig 配置 OpenAI TTS 提供商。
type OpenAITTSConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	BaseURL string        `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty" env:"MODEL"` // tts-1, tts-1-hd
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// OpenAISTTConfig 配置 OpenAI Whisper STT 提供商。
type OpenAISTTConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	BaseURL string        `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty" env:"MODEL"` // whisper-1
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// DeepgramConfig 配置 Deepgram STT 提供商。
type DeepgramConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	BaseURL string        `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty" env:"MODEL"` // nova-2
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// DefaultGoogleTTSConfig 返回默认 Google TTS 配置。
func DefaultGoogleTTSConfig() GoogleTTSConfig {
	return GoogleTTSConfig{
		BaseURL: "https://texttospeech.googleapis.com",
		Timeout: 30 * time.Second,
	}
}

// DefaultElevenLabsConfig 返回默认 ElevenLabs 配置。
func DefaultElevenLabsConfig() ElevenLabsConfig {
	return ElevenLabsConfig{
		BaseURL: "https://api.elevenlabs.io",
		Model:   "eleven_multilingual_v2",
		Timeout: 30 * time.Second,
	}
}

// DefaultOpenAITTSConfig 返回默认 OpenAI TTS 配置。
func DefaultOpenAITTSConfig() OpenAITTSConfig {
	return OpenAITTSConfig{
		BaseURL: "https://api.openai.com",
		Model:   "tts-1-hd",
		Timeout: 30 * time.Second,
	}
}

// DefaultOpenAISTTConfig 返回默认 OpenAI STT 配置。
func DefaultOpenAISTTConfig() OpenAISTTConfig {
	return OpenAISTTConfig{
		BaseURL: "https://api.openai.com",
		Model:   "whisper-1",
		Timeout: 60 * time.Second,
	}
}

// DefaultDeepgramConfig 返回默认 Deepgram 配置。
func DefaultDeepgramConfig() DeepgramConfig {
	return DeepgramConfig{
		BaseURL: "https://api.deepgram.com",
		Model:   "nova-2",
		Timeout: 60 * time.Second,
	}
}
