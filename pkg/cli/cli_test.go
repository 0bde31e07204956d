package cli

import (
	"testing"
	"time"
)

func TestParseArgs_ValidArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected Config
	}{
		{
			name: "デフォルト設定",
			args: []string{},
			expected: Config{
				SongPath: "",
				Speed:    "1.0x",
				Timeout:  0,
				LogLevel: "info",
				Headless: false,
				ShowHelp: false,
			},
		},
		{
			name: "曲ディレクトリ指定",
			args: []string{"/path/to/song"},
			expected: Config{
				SongPath: "/path/to/song",
				Speed:    "1.0x",
				LogLevel: "info",
			},
		},
		{
			name: "再生速度指定",
			args: []string{"--speed", "0.75x"},
			expected: Config{
				Speed:    "0.75x",
				LogLevel: "info",
			},
		},
		{
			name: "サウンドフォント指定",
			args: []string{"--sf2", "/path/to/click.sf2", "/path/to/song"},
			expected: Config{
				SongPath:  "/path/to/song",
				Speed:     "1.0x",
				SoundFont: "/path/to/click.sf2",
				LogLevel:  "info",
			},
		},
		{
			name: "メトロノーム有効",
			args: []string{"--metronome"},
			expected: Config{
				Speed:     "1.0x",
				Metronome: true,
				LogLevel:  "info",
			},
		},
		{
			name: "タイムアウト指定",
			args: []string{"--timeout", "10"},
			expected: Config{
				Speed:    "1.0x",
				Timeout:  10 * time.Second,
				LogLevel: "info",
			},
		},
		{
			name: "タイムアウト指定（短縮形）",
			args: []string{"-t", "5"},
			expected: Config{
				Speed:    "1.0x",
				Timeout:  5 * time.Second,
				LogLevel: "info",
			},
		},
		{
			name: "ログレベル指定",
			args: []string{"--log-level", "debug"},
			expected: Config{
				Speed:    "1.0x",
				LogLevel: "debug",
			},
		},
		{
			name: "ログレベル指定（短縮形）",
			args: []string{"-l", "error"},
			expected: Config{
				Speed:    "1.0x",
				LogLevel: "error",
			},
		},
		{
			name: "ヘッドレスモード",
			args: []string{"--headless"},
			expected: Config{
				Speed:    "1.0x",
				LogLevel: "info",
				Headless: true,
			},
		},
		{
			name: "一覧表示（ディレクトリ指定）",
			args: []string{"--list", "/path/to/songs"},
			expected: Config{
				ListDir:  "/path/to/songs",
				Speed:    "1.0x",
				LogLevel: "info",
			},
		},
		{
			name: "一覧表示（ディレクトリ省略）",
			args: []string{"--list"},
			expected: Config{
				ListDir:  ".",
				Speed:    "1.0x",
				LogLevel: "info",
			},
		},
		{
			name: "ヘルプ表示",
			args: []string{"--help"},
			expected: Config{
				Speed:    "1.0x",
				LogLevel: "info",
				ShowHelp: true,
			},
		},
		{
			name: "複数オプション",
			args: []string{"--timeout", "30", "--speed", "0.5x", "--headless", "/path/to/song"},
			expected: Config{
				SongPath: "/path/to/song",
				Speed:    "0.5x",
				Timeout:  30 * time.Second,
				LogLevel: "info",
				Headless: true,
			},
		},
		{
			name: "フラグが位置引数の後ろ",
			args: []string{"/path/to/song", "--speed", "1.25x"},
			expected: Config{
				SongPath: "/path/to/song",
				Speed:    "1.25x",
				LogLevel: "info",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("ParseArgs(%v) returned error: %v", tt.args, err)
			}
			if *config != tt.expected {
				t.Errorf("ParseArgs(%v) = %+v, want %+v", tt.args, *config, tt.expected)
			}
		})
	}
}

func TestParseArgs_InvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "負のタイムアウト",
			args: []string{"--timeout", "-5"},
		},
		{
			name: "不正なログレベル",
			args: []string{"--log-level", "verbose"},
		},
		{
			name: "不正な再生速度",
			args: []string{"--speed", "2.0x"},
		},
		{
			name: "未知のフラグ",
			args: []string{"--unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseArgs(tt.args); err == nil {
				t.Errorf("ParseArgs(%v) expected error, got nil", tt.args)
			}
		})
	}
}

func TestParseArgs_EnvFallback(t *testing.T) {
	t.Run("HEADLESS環境変数", func(t *testing.T) {
		t.Setenv("HEADLESS", "1")
		config, err := ParseArgs([]string{})
		if err != nil {
			t.Fatalf("ParseArgs returned error: %v", err)
		}
		if !config.Headless {
			t.Error("expected Headless to be true from HEADLESS=1")
		}
	})

	t.Run("TIMEOUT環境変数", func(t *testing.T) {
		t.Setenv("TIMEOUT", "7")
		config, err := ParseArgs([]string{})
		if err != nil {
			t.Fatalf("ParseArgs returned error: %v", err)
		}
		if config.Timeout != 7*time.Second {
			t.Errorf("Timeout = %v, want 7s", config.Timeout)
		}
	})

	t.Run("LOG_LEVEL環境変数", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")
		config, err := ParseArgs([]string{})
		if err != nil {
			t.Fatalf("ParseArgs returned error: %v", err)
		}
		if config.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", config.LogLevel)
		}
	})

	t.Run("コマンドラインフラグが環境変数より優先", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "error")
		config, err := ParseArgs([]string{"--log-level", "warn"})
		if err != nil {
			t.Fatalf("ParseArgs returned error: %v", err)
		}
		if config.LogLevel != "warn" {
			t.Errorf("LogLevel = %q, want warn", config.LogLevel)
		}
	})
}
