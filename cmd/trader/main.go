package main

import (
	"context"
	"flag"
	"os"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/event"
	"main/internal/gateway"
	"main/internal/model/enum"
	"main/internal/ops"
	"main/internal/recorder"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	replayDir := flag.String("replay-dir", "", "Replay journaled events instead of connecting")
	replaySpeed := flag.Float64("replay-speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("config load failed: %v", err)
		os.Exit(1)
	}

	if cfg.Profiler.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Profiler.ApplicationName,
			ServerAddress:   cfg.Profiler.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
			},
		})
		if err != nil {
			logs.Warnf("profiler start failed: %v", err)
		} else {
			defer profiler.Stop()
		}
	}

	engine := event.NewEngine(event.Option{QueueSize: cfg.Engine.QueueSize})
	engine.Start()
	defer engine.Stop()

	engine.Register(event.NewListener("logger", []event.Kind{
		event.KindOrderUpdate,
		event.KindTradeUpdate,
		event.KindError,
		event.KindInfo,
		event.KindSystem,
	}, func(e event.Event) {
		logs.Infof("%s", e)
	}))

	ctx := context.Background()

	if *replayDir != "" {
		if err := runReplay(ctx, *replayDir, *replaySpeed, engine); err != nil {
			logs.Errorf("replay failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if cfg.Recorder.Enabled {
		stopRecorder, err := startRecorder(ctx, cfg, engine)
		if err != nil {
			logs.Errorf("recorder start failed: %v", err)
			os.Exit(1)
		}
		defer stopRecorder()
	}

	client, err := gateway.NewClient(engine, cfg.GatewayConfig())
	if err != nil {
		logs.Errorf("gateway build failed: %v", err)
		os.Exit(1)
	}
	if err := client.Connect(ctx); err != nil {
		logs.Errorf("gateway connect failed: %v", err)
		os.Exit(1)
	}
	defer client.Disconnect()

	for _, sub := range cfg.Subscriptions {
		var err error
		switch enum.Channel(sub.Channel) {
		case enum.ChannelTrades:
			err = client.SubscribeTrades(ctx, sub.Exchange, sub.Market)
		default:
			err = client.SubscribeOrderBook(ctx, sub.Exchange, sub.Market)
		}
		if err != nil {
			logs.Errorf("subscribe %s %s/%s failed: %v", sub.Channel, sub.Exchange, sub.Market, err)
		}
	}

	<-sys.Shutdown()
	logs.Info("shutting down")
}

func startRecorder(ctx context.Context, cfg ops.Config, engine *event.Engine) (func(), error) {
	kinds, err := cfg.Recorder.EventKinds()
	if err != nil {
		return nil, err
	}

	writer, err := recorder.NewWriter(recorder.Config{
		Dir:        cfg.Recorder.Dir,
		FilePrefix: cfg.Recorder.FilePrefix,
		Kinds:      kinds,
	})
	if err != nil {
		return nil, err
	}

	var pg *conn.Client
	if cfg.Recorder.UseDatabase {
		pg, err = conn.New(conn.Option{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, err
		}
		store, err := recorder.NewStore(pg.DB())
		if err != nil {
			_ = pg.Close()
			return nil, err
		}
		writer = writer.WithStore(store)
	}

	if err := writer.Start(ctx); err != nil {
		if pg != nil {
			_ = pg.Close()
		}
		return nil, err
	}
	engine.Register(writer)

	return func() {
		engine.Unregister(writer)
		if err := writer.Stop(); err != nil {
			logs.Errorf("recorder stop: %v", err)
		}
		if pg != nil {
			_ = pg.Close()
		}
	}, nil
}

func runReplay(ctx context.Context, dir string, speed float64, engine *event.Engine) error {
	playback, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:   dir,
		Speed: speed,
	})
	if err != nil {
		return err
	}
	return playback.Replay(ctx, engine)
}
