package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/config"
	"github.com/hitoshi/habitman/internal/predict"
	"github.com/hitoshi/habitman/internal/report"
)

// CLI はhabitmanのコマンドライン定義。
// サブコマンドを省略した場合はserveとして起動する。
type CLI struct {
	Serve       ServeCmd       `cmd:"" default:"1" help:"APIサーバーを起動する。"`
	Worker      WorkerCmd      `cmd:"" help:"期限切れセッションの定期削除を行うワーカーを起動する。"`
	Migrate     MigrateCmd     `cmd:"" help:"データベースマイグレーションを適用する。"`
	Healthcheck HealthcheckCmd `cmd:"" help:"稼働中のサーバーの /health を確認する。"`
	Train       TrainCmd       `cmd:"" help:"指定ユーザーの予測モデルを学習する。"`
	Report      ReportCmd      `cmd:"" help:"指定ユーザーの月次レポートを表示する。"`
}

// runContext はサブコマンドの実行時に渡される共有状態。
type runContext struct {
	out io.Writer
}

// init はログと設定を初期化する。
func (rc *runContext) init() (*config.Config, error) {
	cfg, err := Init(rc.out)
	if err != nil {
		return nil, fmt.Errorf("initialization failed: %w", err)
	}
	return cfg, nil
}

// ServeCmd はAPIサーバーモード。
type ServeCmd struct{}

func (c *ServeCmd) Run(rc *runContext) error {
	cfg, err := rc.init()
	if err != nil {
		return err
	}
	logStart("serve", cfg)
	return runServe(cfg)
}

// WorkerCmd はワーカーモード。
type WorkerCmd struct{}

func (c *WorkerCmd) Run(rc *runContext) error {
	cfg, err := rc.init()
	if err != nil {
		return err
	}
	logStart("worker", cfg)
	return runWorker(cfg)
}

// MigrateCmd はマイグレーションを適用する。
type MigrateCmd struct{}

func (c *MigrateCmd) Run(rc *runContext) error {
	cfg, err := rc.init()
	if err != nil {
		return err
	}
	return runMigrate(cfg)
}

// HealthcheckCmd はdistroless環境でのDockerヘルスチェック用。
// 軽量に動かすため設定の読み込みはSERVER_PORTのみ。
type HealthcheckCmd struct{}

func (c *HealthcheckCmd) Run(rc *runContext) error {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return runHealthcheck(port)
}

// TrainCmd は1ユーザー分のモデルをその場で学習する。
type TrainCmd struct {
	UserID string `arg:"" name:"user-id" help:"学習対象のユーザーID。"`
}

func (c *TrainCmd) Run(rc *runContext) error {
	cfg, err := rc.init()
	if err != nil {
		return err
	}

	e, err := openEnv(cfg, nil)
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.trainer.TrainForUser(context.Background(), c.UserID)
	if errors.Is(err, predict.ErrNotEnoughData) {
		fmt.Fprintf(rc.out, "not enough data to train a model for %s\n", c.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	fmt.Fprintf(rc.out, "trained model for %s: %d samples -> %s\n", res.UserID, res.Samples, res.Path)
	return nil
}

// ReportCmd は月次統計を端末に表示する。
// APIの統計取得と同じく、条件を満たした通知はこの時点で保存される。
type ReportCmd struct {
	UserID string `arg:"" name:"user-id" help:"対象ユーザーID。"`
	Month  string `help:"対象月 (YYYY-MM)。省略時は今月。" placeholder:"YYYY-MM"`
}

func (c *ReportCmd) Run(rc *runContext) error {
	cfg, err := rc.init()
	if err != nil {
		return err
	}

	month := c.Month
	if month == "" {
		month = calendar.FormatMonth(calendar.NewClock(cfg.Location)())
	}
	first, err := calendar.ParseMonth(month)
	if err != nil {
		return err
	}

	e, err := openEnv(cfg, nil)
	if err != nil {
		return err
	}
	defer e.close()

	st, err := e.analytics.MonthStats(context.Background(), c.UserID, first.Year(), int(first.Month()))
	if err != nil {
		return fmt.Errorf("failed to compute month stats: %w", err)
	}
	return report.Write(rc.out, st)
}

// newParser はCLI定義からkongのパーサーを生成する。
func newParser(cli *CLI, w io.Writer, extra ...kong.Option) (*kong.Kong, error) {
	opts := []kong.Option{
		kong.Name("habitman"),
		kong.Description("Habit tracking analytics server"),
		kong.UsageOnError(),
		kong.Writers(w, w),
	}
	return kong.New(cli, append(opts, extra...)...)
}

// ParseCommand はコマンドライン引数を解析し、選択されたサブコマンド名を返す。
// 引数が空の場合は "serve" を返す。
func ParseCommand(args []string) (string, error) {
	var cli CLI
	parser, err := newParser(&cli, io.Discard, kong.Exit(func(int) {}))
	if err != nil {
		return "", err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	return kctx.Command(), nil
}

func logStart(command string, cfg *config.Config) {
	slog.Info("starting application",
		slog.String("command", command),
		slog.String("port", cfg.ServerPort),
		slog.String("timezone", cfg.Location.String()),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
}
