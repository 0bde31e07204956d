// Package cli はコマンドライン引数と環境変数から設定を組み立てる
package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	SongPath  string        // 曲ディレクトリ（analysis.jsonを含む）
	ListDir   string        // 曲一覧を表示するディレクトリ（-list指定時）
	Speed     string        // 初期再生速度ラベル（0.5x, 0.75x, 1.0x, 1.25x）
	SoundFont string        // メトロノーム用サウンドフォントのパス
	Metronome bool          // メトロノームを初期状態で有効にする
	Timeout   time.Duration // タイムアウト時間（0は無制限）
	LogLevel  string        // ログレベル（debug, info, warn, error）
	Headless  bool          // ヘッドレスモード
	ShowHelp  bool          // ヘルプ表示フラグ
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("stem-tutor", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec int
	var list bool
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.StringVar(&config.Speed, "speed", "1.0x", "初期再生速度（0.5x, 0.75x, 1.0x, 1.25x）")
	fs.StringVar(&config.SoundFont, "sf2", "", "メトロノーム用サウンドフォント（.sf2）のパス")
	fs.BoolVar(&config.Metronome, "metronome", false, "メトロノームを有効にして開始")
	fs.BoolVar(&list, "list", false, "指定ディレクトリの曲一覧を表示して終了")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	// 再生速度の検証
	validSpeeds := map[string]bool{
		"0.5x":  true,
		"0.75x": true,
		"1.0x":  true,
		"1.25x": true,
	}
	if !validSpeeds[config.Speed] {
		return nil, fmt.Errorf("invalid speed: %s (must be 0.5x, 0.75x, 1.0x, or 1.25x)", config.Speed)
	}

	// 位置引数（曲ディレクトリ、または-list時はカタログディレクトリ）
	if fs.NArg() > 0 {
		if list {
			config.ListDir = fs.Arg(0)
		} else {
			config.SongPath = fs.Arg(0)
		}
	} else if list {
		// ディレクトリ省略時はカレントディレクトリを使う
		config.ListDir = "."
	}

	return config, nil
}

// PrintHelp 使い方を表示
func PrintHelp() {
	fmt.Println(`Usage: stem-tutor [options] <song-dir>

Plays the pre-separated stems of a processed song in sync, with per-stem
mute/solo, looping and instant speed switching.

Options:
  -speed <label>    initial playback speed (0.5x, 0.75x, 1.0x, 1.25x)
  -sf2 <path>       soundfont for the metronome click
  -metronome        start with the metronome enabled
  -list [dir]       list processed songs under a directory and exit
  -t, -timeout <s>  terminate after the given number of seconds
  -l, -log-level    log level (debug, info, warn, error)
  -headless         run without a window, audio muted
  -h, -help         show this help`)
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	boolFlags := map[string]bool{
		"-metronome": true, "--metronome": true,
		"-list": true, "--list": true,
		"-headless": true, "--headless": true,
		"-help": true, "--help": true,
		"-h": true, "--h": true,
	}

	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			// 値を取るフラグの場合は次の引数も一緒に移動する
			if !boolFlags[arg] && !strings.Contains(arg, "=") &&
				i+1 < len(args) && (len(args[i+1]) == 0 || args[i+1][0] != '-') {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}
