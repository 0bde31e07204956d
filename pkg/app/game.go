package app

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/zurustar/stem-tutor/pkg/analysis"
	"github.com/zurustar/stem-tutor/pkg/player"
)

var (
	// 背景色 #101418
	backgroundColor = color.RGBA{0x10, 0x14, 0x18, 0xFF}
	// テキスト色（白）
	textColor = color.White
	// 選択中のステムの色（黄色）
	selectedTextColor = color.RGBA{0xFF, 0xFF, 0x00, 0xFF}
	// ミュート中のステムの色（灰色）
	mutedTextColor = color.RGBA{0x70, 0x70, 0x70, 0xFF}
	// ビート点滅の色
	beatColor     = color.RGBA{0x40, 0xC0, 0xFF, 0xFF}
	downbeatColor = color.RGBA{0xFF, 0x60, 0x40, 0xFF}
	// デフォルトフォント
	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

const seekStep = 5.0 // 左右キーでのシーク量（秒）

// Game はEbitengineのゲームインターフェースを実装し、プレイヤーを操作する
type Game struct {
	player    *player.Player
	metronome *player.Metronome
	song      *analysis.SongAnalysis

	selectedStem int // ステム一覧での選択位置

	timeout   time.Duration
	startTime time.Time
}

// NewGame Gameを作成
func NewGame(p *player.Player, m *player.Metronome, song *analysis.SongAnalysis, timeout time.Duration) *Game {
	return &Game{
		player:    p,
		metronome: m,
		song:      song,
		timeout:   timeout,
		startTime: time.Now(),
	}
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	// タイムアウトチェック
	if g.timeout > 0 && time.Since(g.startTime) >= g.timeout {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	g.handleTransportKeys()
	g.handleSpeedKeys()
	g.handleLoopKeys()
	g.handleStemKeys()

	// エンジンのティック（ループ折り返し・終端処理はここで走る）
	g.player.Update()
	return nil
}

// handleTransportKeys 再生・停止・シーク
func (g *Game) handleTransportKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		snap := g.player.Snapshot()
		if snap.Playing {
			g.player.Pause()
		} else {
			// 再生開始はオーディオコンテキスト準備待ちを含む
			if err := g.player.Play(context.Background()); err != nil {
				g.player.Pause()
			}
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		g.player.Stop()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) {
		g.player.Seek(g.player.Position() - seekStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) {
		g.player.Seek(g.player.Position() + seekStep)
	}
}

// handleSpeedKeys 数字キーで再生速度を切り替える
func (g *Game) handleSpeedKeys() {
	keys := []ebiten.Key{ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4}
	for i, key := range keys {
		if inpututil.IsKeyJustPressed(key) {
			// デコードは裏で走らせ、ティックをブロックしない
			speed := player.Speeds[i]
			go func() {
				_ = g.player.SetSpeed(context.Background(), speed)
			}()
		}
	}
}

// handleLoopKeys ループ区間の設定・解除
func (g *Game) handleLoopKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) {
		g.player.SetLoopStart()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) {
		g.player.SetLoopEnd()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		g.player.ClearLoop()
	}
}

// handleStemKeys ステム選択とミキサー操作
func (g *Game) handleStemKeys() {
	stems := g.song.StemNames()
	if len(stems) == 0 {
		return
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		if g.selectedStem > 0 {
			g.selectedStem--
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		if g.selectedStem < len(stems)-1 {
			g.selectedStem++
		}
	}

	name := stems[g.selectedStem]
	snap := g.player.Snapshot()
	var status player.StemStatus
	for _, s := range snap.Stems {
		if s.Name == name {
			status = s
			break
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		g.player.SetMuted(name, !status.Muted)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyO) {
		g.player.ToggleSolo(name)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) {
		g.player.SetVolume(name, status.Volume-10)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) {
		g.player.SetVolume(name, status.Volume+10)
	}

	if g.metronome != nil && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		g.metronome.Toggle()
	}
}

// Draw 画面の描画
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	snap := g.player.Snapshot()

	g.drawTransport(screen, snap)
	g.drawBeat(screen, snap)
	g.drawStems(screen, snap)
	g.drawLyrics(screen, snap)
	g.drawHelp(screen)
}

// drawTransport 曲名・再生位置・速度・ループ状態
func (g *Game) drawTransport(screen *ebiten.Image, snap player.Snapshot) {
	title := g.song.Title
	if g.song.Artist != "" {
		title = g.song.Artist + " - " + title
	}
	drawText(screen, title, 20, 20, textColor)

	state := "PAUSED"
	if snap.Playing {
		state = "PLAYING"
	}
	if snap.Loading {
		state = "LOADING"
	}
	line := fmt.Sprintf("%s  %s / %s  speed %s",
		state, formatTime(snap.Position), formatTime(snap.Duration), snap.Speed.Label())
	drawText(screen, line, 20, 44, textColor)

	if snap.LoopSet {
		loop := fmt.Sprintf("loop %s - %s", formatTime(snap.LoopStart), formatTime(snap.LoopEnd))
		drawText(screen, loop, 20, 64, selectedTextColor)
	}
}

// drawBeat ビート点滅インジケーター
func (g *Game) drawBeat(screen *ebiten.Image, snap player.Snapshot) {
	flash := snap.Flash
	switch {
	case flash.IsDownbeat:
		drawText(screen, "[ BEAT ]", 400, 44, downbeatColor)
	case flash.IsBeat:
		drawText(screen, "[ beat ]", 400, 44, beatColor)
	}
	if flash.BeatInMeasure != nil {
		drawText(screen, fmt.Sprintf("%d", *flash.BeatInMeasure), 480, 44, textColor)
	}
}

// drawStems ステム一覧（ミキサー）
func (g *Game) drawStems(screen *ebiten.Image, snap player.Snapshot) {
	drawText(screen, "Stems:", 20, 100, textColor)

	for i, stem := range snap.Stems {
		y := 124 + float64(i*20)

		prefix := "  "
		if i == g.selectedStem {
			prefix = "> "
		}

		flags := ""
		if stem.Muted {
			flags += " [M]"
		}
		if stem.Soloed {
			flags += " [S]"
		}
		if !stem.Loaded {
			flags += " (loading)"
		}

		line := fmt.Sprintf("%s%-12s vol %3d%%%s", prefix, stem.Name, stem.Volume, flags)

		c := textColor
		if stem.Muted {
			c = mutedTextColor
		}
		if i == g.selectedStem {
			c = selectedTextColor
		}
		drawText(screen, line, 20, y, c)
	}
}

// drawLyrics 現在の歌詞行と単語のハイライト
func (g *Game) drawLyrics(screen *ebiten.Image, snap player.Snapshot) {
	if g.song.Lyrics == nil {
		return
	}

	// 歌詞のタイムスタンプは基準時間なので、表示位置を変換して引く
	ref := player.ToRef(snap.Position, snap.Speed)
	li := g.song.Lyrics.LineAt(ref)
	if li < 0 {
		return
	}
	line := &g.song.Lyrics.Lines[li]

	x := 20.0
	wi := line.WordAt(ref)
	for i := range line.Words {
		w := &line.Words[i]
		c := textColor
		if i == wi {
			c = selectedTextColor
		}
		drawText(screen, w.Text, x, 560, c)
		x += float64(len(w.Text)+1) * 7 // Face7x13は等幅7px
	}
}

// drawHelp 操作説明
func (g *Game) drawHelp(screen *ebiten.Image) {
	help := "SPACE play/pause  S stop  LEFT/RIGHT seek  1-4 speed  [/] loop  C clear"
	help2 := "UP/DOWN stem  M mute  O solo  -/= volume  N metronome  ESC quit"
	drawText(screen, help, 20, 620, textColor)
	drawText(screen, help2, 20, 640, textColor)
}

func drawText(screen *ebiten.Image, s string, x, y float64, c color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(c)
	text.Draw(screen, s, defaultFace, op)
}

// formatTime 秒をmm:ss.s形式にする
func formatTime(t float64) string {
	if t < 0 {
		t = 0
	}
	min := int(t) / 60
	sec := t - float64(min*60)
	return fmt.Sprintf("%d:%04.1f", min, sec)
}

// Layout 画面サイズを返す
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return 1024, 768
}

// RunWindow プレイヤーのウィンドウを表示して実行する
func RunWindow(p *player.Player, m *player.Metronome, song *analysis.SongAnalysis, timeout time.Duration) error {
	game := NewGame(p, m, song, timeout)

	// ウィンドウ設定
	ebiten.SetWindowSize(1024, 768)
	ebiten.SetWindowTitle("stem-tutor - " + song.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(game); err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}
	return nil
}
