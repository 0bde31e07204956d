// Package app はアプリケーションの起動と各コンポーネントの結線を担当する
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zurustar/stem-tutor/pkg/analysis"
	"github.com/zurustar/stem-tutor/pkg/cli"
	"github.com/zurustar/stem-tutor/pkg/fileutil"
	"github.com/zurustar/stem-tutor/pkg/logger"
	"github.com/zurustar/stem-tutor/pkg/player"
)

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config    *cli.Config
	log       *slog.Logger
	song      *analysis.SongAnalysis
	player    *player.Player
	metronome *player.Metronome
}

// New Applicationを作成
func New() *Application {
	return &Application{}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Info("Application started")

	// 3. 一覧表示モード
	if app.config.ListDir != "" {
		return app.listSongs()
	}

	if app.config.SongPath == "" {
		cli.PrintHelp()
		return fmt.Errorf("no song directory given")
	}

	// 4. 解析結果の読み込み
	if err := app.loadSong(); err != nil {
		return fmt.Errorf("failed to load song: %w", err)
	}

	app.log.Info("Song loaded",
		"title", app.song.Title, "artist", app.song.Artist,
		"duration", app.song.OriginalDuration, "stems", len(app.song.Stems))

	// 5. プレイヤーの構築とステムのデコード
	if err := app.initPlayer(); err != nil {
		return fmt.Errorf("failed to initialize player: %w", err)
	}
	defer app.player.Close()

	// 6. メトロノーム（サウンドフォントが見つかった場合のみ）
	app.initMetronome()
	if app.metronome != nil {
		defer app.metronome.Close()
	}

	// 7. 実行
	if err := app.runPlayer(); err != nil {
		return fmt.Errorf("failed to run player: %w", err)
	}

	app.log.Info("Application terminated normally")
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLogger(app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// listSongs 処理済みの曲一覧を表示
func (app *Application) listSongs() error {
	songs, err := analysis.ListSongs(app.config.ListDir)
	if err != nil {
		return fmt.Errorf("failed to list songs: %w", err)
	}

	if len(songs) == 0 {
		fmt.Println("No processed songs found.")
		return nil
	}

	for _, s := range songs {
		name := s.Title
		if name == "" {
			name = s.Path
		}
		if s.Artist != "" {
			fmt.Printf("%s - %s  (%.0fs, %d stems)  %s\n",
				s.Artist, name, s.Duration, s.StemCount, s.Path)
		} else {
			fmt.Printf("%s  (%.0fs, %d stems)  %s\n",
				name, s.Duration, s.StemCount, s.Path)
		}
	}
	return nil
}

// loadSong 曲ディレクトリからanalysis.jsonを読み込む
func (app *Application) loadSong() error {
	fsys := fileutil.NewRealFS(app.config.SongPath)
	song, err := analysis.Load(fsys)
	if err != nil {
		return err
	}
	app.song = song
	return nil
}

// initPlayer プレイヤーを構築して現在速度のステムをデコードする
func (app *Application) initPlayer() error {
	fsys := fileutil.NewRealFS(app.config.SongPath)
	backend := player.NewEbitenBackend(fsys, app.config.Headless)

	app.player = player.NewPlayer(backend, app.song,
		player.WithLogger(app.log),
		player.WithInitialSpeed(player.ParseSpeed(app.config.Speed)),
	)

	ctx := context.Background()
	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
	}

	if err := app.player.Load(ctx); err != nil {
		return err
	}
	return nil
}

// initMetronome サウンドフォントが見つかればメトロノームを用意する
func (app *Application) initMetronome() {
	sfPath := findSoundFont(app.config.SoundFont, app.config.SongPath)
	if sfPath == "" {
		if app.config.Metronome || app.config.SoundFont != "" {
			app.log.Warn("No soundfont found, metronome unavailable")
		}
		return
	}

	sf, err := loadSoundFont(sfPath)
	if err != nil {
		app.log.Warn("Failed to load soundfont, metronome unavailable", "error", err)
		return
	}

	backend := player.NewEbitenBackend(fileutil.NewRealFS(app.config.SongPath), app.config.Headless)
	m, err := player.NewMetronome(backend, sf, app.song.Beats, app.player.TransportState)
	if err != nil {
		app.log.Warn("Failed to start metronome", "error", err)
		return
	}
	m.SetEnabled(app.config.Metronome)
	app.metronome = m
	app.log.Info("Metronome ready", "soundfont", sfPath, "enabled", app.config.Metronome)
}

// runPlayer プレイヤーを実行（GUIまたはヘッドレス）
func (app *Application) runPlayer() error {
	// ヘッドレスモードの場合はウィンドウなしで再生する
	if app.config.Headless {
		return app.runHeadless()
	}

	return RunWindow(app.player, app.metronome, app.song, app.config.Timeout)
}

// runHeadless ウィンドウなしで再生し、曲の終了またはタイムアウトまで待つ
func (app *Application) runHeadless() error {
	app.log.Info("Headless mode: playing without a window")

	ctx := context.Background()
	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
	}

	if err := app.player.Play(ctx); err != nil {
		return err
	}

	// ゲームループの代わりに60Hzでティックを駆動する
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			app.log.Info("Timeout reached, terminating")
			return nil
		case <-ticker.C:
			app.player.Update()
			snap := app.player.Snapshot()
			if !snap.Playing && !snap.Loading {
				app.log.Info("Playback finished")
				return nil
			}
		}
	}
}
