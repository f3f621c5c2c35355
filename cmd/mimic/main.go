// Command mimic plays a motion clip through the imitation environment,
// driving the character with the reference action and logging the reward.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-mimic/internal/config"
	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/character"
	"github.com/teslashibe/go-mimic/pkg/env"
	"github.com/teslashibe/go-mimic/pkg/motion"
	"github.com/teslashibe/go-mimic/pkg/physics"
	"github.com/teslashibe/go-mimic/pkg/pose"
	"github.com/teslashibe/go-mimic/pkg/reward"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
	"github.com/teslashibe/go-mimic/pkg/web"
)

const (
	simBodyID   = 1
	ghostBodyID = character.GhostID
)

func main() {
	configDir := flag.String("config", ".", "Directory holding "+config.FileName)
	clipFlag := flag.String("clip", "", "Motion clip path or http(s) URL (overrides config)")
	episodes := flag.Int("episodes", 0, "Episodes to play (overrides config)")
	serve := flag.Bool("serve", false, "Serve the reference pose API")
	realtime := flag.Bool("realtime", false, "Pace steps to wall-clock time")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := log.Init(cfg.LogLevel)

	clipPath := cfg.ClipPath
	if *clipFlag != "" {
		clipPath = *clipFlag
	}
	if *episodes > 0 {
		cfg.Episodes = *episodes
	}
	if *serve {
		cfg.Server.Enabled = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, clipPath, *realtime); err != nil {
		logger.Error("mimic failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, clipPath string, realtime bool) error {
	logger := log.With("clip", clipPath)

	clip, err := motion.Open(ctx, clipPath)
	if err != nil {
		return err
	}
	if err := clip.ValidateTimestep(1e-6); err != nil {
		logger.Warn("clip timestep varies, playback assumes the first frame's dt", "error", err)
	}

	joints, err := cfg.JointSet()
	if err != nil {
		return err
	}

	sim := physics.NewKinematicBody(simBodyID, skeleton.HumanoidLinkCount)
	opts := character.DefaultOptions()
	opts.BaseShift = cfg.BaseShiftVec()
	opts.AllowedContacts = cfg.AllowedContacts
	opts.Ghost = physics.NewKinematicBody(ghostBodyID, skeleton.HumanoidLinkCount)

	ctrl, err := character.New(clip, joints, sim, opts)
	if err != nil {
		return err
	}
	r, err := reward.New(joints, cfg.RewardConfig())
	if err != nil {
		return err
	}

	var envOpts []env.Option
	if cfg.Server.Enabled {
		srv := web.NewServer(cfg.Server.Port, clip, pose.NewCodec(joints))
		srv.StartAsync()
		defer srv.Shutdown()
		envOpts = append(envOpts, env.WithObserver(srv.Observe))
	}

	e, ts, err := env.New(ctrl, r, sim, cfg.EnvConfig(), envOpts...)
	if err != nil {
		return err
	}
	logger.Info("clip loaded",
		"frames", clip.FrameCount(),
		"cycle", clip.CycleDuration(),
		"actions", e.ActionSpec().Len(),
		"observations", e.ObservationSpec().Len())

	var ticker *time.Ticker
	if realtime {
		ticker = time.NewTicker(time.Duration(e.ControlStep() * float64(time.Second)))
		defer ticker.Stop()
	}

	for ep := 0; ep < cfg.Episodes; ep++ {
		if ep > 0 {
			if ts, err = e.Reset(); err != nil {
				return err
			}
		}

		total := 0.0
		for !ts.Last() {
			if ticker != nil {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			} else if ctx.Err() != nil {
				return nil
			}

			action, err := e.ReferenceAction()
			if err != nil {
				return err
			}
			if ts, err = e.Step(action); err != nil {
				return err
			}
			total += ts.Reward
		}

		mean := 0.0
		if ts.Number > 0 {
			mean = total / float64(ts.Number)
		}
		logger.Info("episode done",
			"episode", ts.EpisodeID,
			"steps", ts.Number,
			"mean_reward", mean,
			"terminated", ts.Terminated)
	}

	if cfg.Server.Enabled {
		logger.Info("playback finished, serving until interrupted")
		<-ctx.Done()
	}
	return nil
}
