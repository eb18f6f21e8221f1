// 文件: cmd/booktop/main.go
// 打印订单簿前 N 档
//
//	booktop -side bids -n 10
//	booktop -side both -json
//	booktop -watch          # 跟随 depthd 推送的深度

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"laminar.com/pkg/book"
	"laminar.com/pkg/config"
	"laminar.com/pkg/depth"
	"laminar.com/pkg/ledger"
	"laminar.com/pkg/logger"
	"laminar.com/pkg/nats"
)

type options struct {
	side    string
	levels  int
	asJSON  bool
	watch   bool
	envFile string
}

func main() {
	var opts options
	flag.StringVar(&opts.side, "side", "both", "bids | asks | both")
	flag.IntVar(&opts.levels, "n", 0, "levels per side (0 = BOOK_LEVELS)")
	flag.BoolVar(&opts.asJSON, "json", false, "print JSON")
	flag.BoolVar(&opts.watch, "watch", false, "follow depth snapshots over NATS")
	flag.StringVar(&opts.envFile, "env", "", "env file (default .env)")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "booktop:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	var files []string
	if opts.envFile != "" {
		files = append(files, opts.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, OutputPaths: []string{"stderr"}, Development: true})
	if err != nil {
		return err
	}
	defer log.Sync()

	if opts.levels <= 0 {
		opts.levels = cfg.Book.Levels
	}
	sides, err := parseSides(opts.side)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := printer{out: os.Stdout, fmt: cfg.Formatter(), sides: sides, levels: opts.levels, asJSON: opts.asJSON}

	if opts.watch {
		return watch(ctx, cfg, p, log)
	}

	ledgerCfg := ledger.DefaultConfig(cfg.Node.URL)
	ledgerCfg.Timeout = cfg.Node.Timeout
	ledgerCfg.MaxRetries = cfg.Node.MaxRetries
	reader := book.NewReader(ledger.NewClient(ledgerCfg, log), cfg.Market(), log)

	if len(sides) == 2 {
		d, err := reader.Depth(ctx, opts.levels)
		if err != nil {
			return err
		}
		return p.print(d.Bids, d.Asks)
	}

	levels, err := reader.Top(ctx, sides[0], opts.levels)
	if err != nil {
		return err
	}
	if sides[0] == book.SideBids {
		return p.print(levels, nil)
	}
	return p.print(nil, levels)
}

func parseSides(s string) ([]book.Side, error) {
	if s == "both" {
		return []book.Side{book.SideBids, book.SideAsks}, nil
	}
	side, err := book.ParseSide(s)
	if err != nil {
		return nil, err
	}
	return []book.Side{side}, nil
}

// watch 订阅 depthd 推送，只打印当前订单簿的快照
func watch(ctx context.Context, cfg *config.Config, p printer, log *zap.Logger) error {
	if cfg.NATS.URL == "" {
		return fmt.Errorf("-watch needs NATS_URL")
	}
	key := cfg.Market().Key()

	snaps := make(chan *depth.Snapshot, 16)
	sub, err := nats.NewSubscriber(cfg.NATS.URL, func(_ string, data []byte) error {
		snap, err := depth.DecodeSnapshot(data)
		if err != nil {
			return err
		}
		if snap.Book != key {
			return nil
		}
		select {
		case snaps <- snap:
		default:
		}
		return nil
	}, log)
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := sub.Subscribe(cfg.NATS.Subject); err != nil {
		return err
	}
	log.Info("watching depth", zap.String("subject", cfg.NATS.Subject), zap.String("market", key))

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-snaps:
			fmt.Fprintf(p.out, "# snapshot %d at %s\n", snap.ID, snap.Ts.Format(time.RFC3339Nano))
			if err := p.print(head(snap.Bids, p.levels), head(snap.Asks, p.levels)); err != nil {
				return err
			}
		}
	}
}

func head(levels []book.Level, n int) []book.Level {
	return levels[:min(n, len(levels))]
}

// =============================================================================
// 输出
// =============================================================================

type printer struct {
	out    io.Writer
	fmt    book.Formatter
	sides  []book.Side
	levels int
	asJSON bool
}

func (p printer) print(bids, asks []book.Level) error {
	byside := map[book.Side][]book.Level{book.SideBids: bids, book.SideAsks: asks}

	if p.asJSON {
		out := make(map[book.Side][]book.DisplayLevel, len(p.sides))
		for _, side := range p.sides {
			out[side] = p.fmt.Levels(byside[side])
		}
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, side := range p.sides {
		fmt.Fprintf(tw, "%s\t\t\n", side)
		fmt.Fprintf(tw, "price\tsize\t\n")
		for _, l := range p.fmt.Levels(byside[side]) {
			fmt.Fprintf(tw, "%s\t%s\t\n", l.Price, l.Size)
		}
		if len(byside[side]) == 0 {
			fmt.Fprintf(tw, "(empty)\t\t\n")
		}
	}
	return tw.Flush()
}
