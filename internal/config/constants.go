package config

import "time"

// Application constants for the To-Docx desktop backend
const (
	// Application Info
	AppName    = "To-Docx Desktop"
	AppVersion = "1.0.0"
	AppDirName = "to-docx-desktop"
	AppDotDir  = ".to-docx"

	// Server
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8765
	DefaultConvertTimeout = 4 * time.Hour

	// License and ledger records (one file each in the config directory)
	LicenseFileName = "license.dat"
	QuotaFileName   = "quota.dat"

	// Activation throttling
	MaxActivationsPerMinute = 10

	// Billing
	DefaultUnitPricePerHour = "0.8"
	DefaultCurrency         = "CNY"

	// DashScope limits: files up to 2GB and 12 hours of audio
	MaxUpstreamFileSize = 2 * 1024 * 1024 * 1024
	MaxUpstreamDuration = 12 * time.Hour

	// Re-encoding parameters; paraformer models need at least 16kHz
	CompressBitrate  = "64k"
	ExtractBitrate   = "128k"
	TargetSampleRate = 16000

	// ASR
	DefaultASRBaseURL = "https://dashscope.aliyuncs.com"
	DefaultASRModel   = "paraformer-mtl-v1"

	// Conversion output
	ContentPreviewLength = 200
)
