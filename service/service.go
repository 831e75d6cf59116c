package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-cache/cache"
	"github.com/saiset-co/sai-cache/config"
	"github.com/saiset-co/sai-cache/cron"
	"github.com/saiset-co/sai-cache/events"
	"github.com/saiset-co/sai-cache/health"
	"github.com/saiset-co/sai-cache/history"
	"github.com/saiset-co/sai-cache/logger"
	"github.com/saiset-co/sai-cache/metrics"
	"github.com/saiset-co/sai-cache/sai"
	"github.com/saiset-co/sai-cache/server"
	"github.com/saiset-co/sai-cache/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const sweepJobName = "cache_expiry_sweep"

// Service wires the cache engine with its supporting managers and drives
// their lifecycle. Start blocks until the service shuts down.
type Service struct {
	ctx             context.Context
	cancel          context.CancelFunc
	configPath      string
	done            chan struct{}
	wg              sync.WaitGroup
	state           atomic.Value
	shutdownTimeout time.Duration
	container       *sai.Container
}

func NewService(ctx context.Context, configPath string) (*Service, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, types.WrapError(err, "config file does not exist")
	}

	serviceCtx, cancel := context.WithCancel(ctx)
	container := sai.InitContainer()

	service := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		configPath:      configPath,
		container:       container,
		done:            make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
	}

	service.state.Store(StateStopped)

	if err := registerProviders(container, serviceCtx, configPath); err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to register providers")
	}

	sai.SetContainer(container)
	return service, nil
}

func (s *Service) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		sai.Logger().Warn("Service is already running")
		return types.ErrAlreadyRunning
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				runErr = fmt.Errorf("service panic: %v", r)
				sai.Logger().Error("Service run panic", zap.String("stack", string(buf[:n])))
				s.setState(StateStopped)
			}
		}()

		runErr = s.run()
	}()

	return runErr
}

func (s *Service) run() error {
	sai.Logger().Info("Starting service")

	if err := s.startComponents(); err != nil {
		s.setState(StateStopped)
		return types.WrapError(err, "failed to start components")
	}

	s.setState(StateRunning)
	s.setupSignalHandling()

	s.wg.Add(1)
	go s.contextMonitor()

	sai.Logger().Info("Service started successfully")

	<-s.done

	if err := s.stopComponents(); err != nil {
		sai.Logger().Error("Error during service shutdown", zap.Error(err))
	}

	s.wg.Wait()
	s.setState(StateStopped)

	sai.Logger().Info("Service stopped gracefully")
	return nil
}

func (s *Service) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		sai.Logger().Warn("Service is not running")
		return types.ErrNotRunning
	}

	sai.Logger().Info("Stopping service...")
	s.cancel()

	return nil
}

func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) Context() context.Context {
	return s.ctx
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) bool {
	return s.state.CompareAndSwap(s.getState(), newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}

func (s *Service) startComponents() error {
	_config := sai.Config().GetConfig()

	if ptr := s.container.Config.Load(); ptr != nil {
		if err := (*ptr).(types.LifecycleManager).Start(); err != nil {
			return types.WrapError(err, "failed to start config manager")
		}
	}

	if ptr := s.container.Logger.Load(); ptr != nil {
		if err := (*ptr).(types.LifecycleManager).Start(); err != nil {
			return types.WrapError(err, "failed to start logger")
		}
	}

	if ptr := s.container.Health.Load(); ptr != nil {
		if err := (*ptr).Start(); err != nil {
			sai.Logger().Error("Failed to start health manager", zap.Error(err))
		}
	}

	if ptr := s.container.Metrics.Load(); ptr != nil {
		if err := (*ptr).Start(); err != nil {
			sai.Logger().Error("Failed to start metrics manager", zap.Error(err))
		}
	}

	if ptr := s.container.Events.Load(); ptr != nil {
		if err := (*ptr).Start(); err != nil {
			sai.Logger().Error("Failed to start event broker", zap.Error(err))
		}
	}

	if ptr := s.container.Cache.Load(); ptr != nil {
		if err := (*ptr).Start(); err != nil {
			return types.WrapError(err, "failed to start cache manager")
		}
	}

	if ptr := s.container.HTTPServer.Load(); ptr != nil {
		if err := (*ptr).Start(); err != nil {
			sai.Logger().Error("Failed to start HTTP server", zap.Error(err))
		}
	}

	if _config.Cron != nil && _config.Cron.Enabled {
		if ptr := s.container.Cron.Load(); ptr != nil {
			if err := (*ptr).Start(); err != nil {
				sai.Logger().Error("Failed to start cron manager", zap.Error(err))
			}
		}
	}

	sai.Logger().Info("All components started successfully")
	return nil
}

func (s *Service) stopComponents() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errors []error

	sai.Logger().Info("Stopping service components...")

	g, gCtx := errgroup.WithContext(ctx)

	if ptr := s.container.Cron.Load(); ptr != nil {
		manager := *ptr
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				if err := manager.Stop(); err != nil {
					sai.Logger().Error("Failed to stop cron manager", zap.Error(err))
					return err
				}
				return nil
			}
		})
	}

	if ptr := s.container.HTTPServer.Load(); ptr != nil {
		manager := *ptr
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				if err := manager.Stop(); err != nil {
					sai.Logger().Error("Failed to stop HTTP server", zap.Error(err))
					return err
				}
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			sai.Logger().Warn("Component shutdown timeout, some components may not have stopped gracefully")
		default:
			errors = append(errors, err)
		}
	}

	if ptr := s.container.Cache.Load(); ptr != nil {
		if err := (*ptr).Stop(); err != nil {
			sai.Logger().Error("Failed to stop cache manager", zap.Error(err))
			errors = append(errors, err)
		}
	}

	if ptr := s.container.Events.Load(); ptr != nil {
		if err := (*ptr).Stop(); err != nil {
			sai.Logger().Error("Failed to stop event broker", zap.Error(err))
			errors = append(errors, err)
		}
	}

	if ptr := s.container.Journal.Load(); ptr != nil {
		if err := (*ptr).Close(); err != nil {
			sai.Logger().Error("Failed to close snapshot journal", zap.Error(err))
			errors = append(errors, err)
		}
	}

	if ptr := s.container.Metrics.Load(); ptr != nil {
		if err := (*ptr).Stop(); err != nil {
			sai.Logger().Error("Failed to stop metrics manager", zap.Error(err))
			errors = append(errors, err)
		}
	}

	if ptr := s.container.Health.Load(); ptr != nil {
		if err := (*ptr).Stop(); err != nil {
			sai.Logger().Error("Failed to stop health manager", zap.Error(err))
			errors = append(errors, err)
		}
	}

	if ptr := s.container.Logger.Load(); ptr != nil {
		if err := (*ptr).(types.LifecycleManager).Stop(); err != nil {
			errors = append(errors, err)
		}
	}

	if ptr := s.container.Config.Load(); ptr != nil {
		if err := (*ptr).(types.LifecycleManager).Stop(); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return types.NewErrorf("errors during shutdown: %v", errors)
	}

	sai.Logger().Info("All components stopped successfully")
	return nil
}

func (s *Service) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case sig := <-sigChan:
			sai.Logger().Info("Received shutdown signal", zap.String("signal", sig.String()))
			if s.transitionState(StateRunning, StateStopping) {
				s.cancel()
			}

		case <-s.ctx.Done():
			sai.Logger().Info("Service context cancelled")
		}

		signal.Stop(sigChan)
		close(sigChan)
	}()
}

func (s *Service) contextMonitor() {
	defer s.wg.Done()
	defer close(s.done)

	<-s.ctx.Done()

	switch err := s.ctx.Err(); {
	case types.IsError(err, context.Canceled):
		sai.Logger().Info("Service shutdown: context cancelled")
	case types.IsError(err, context.DeadlineExceeded):
		sai.Logger().Warn("Service shutdown: context deadline exceeded")
	default:
		sai.Logger().Info("Service shutdown: context done")
	}
}

func registerProviders(container *sai.Container, ctx context.Context, configPath string) error {
	var metricsManager types.MetricsManager
	var healthManager types.HealthManager
	var eventBroker types.EventBroker
	var cronManager types.CronManager

	configManager, err := config.NewConfigurationManager(ctx, configPath)
	if err != nil {
		return types.WrapError(err, "failed to register config manager")
	}
	container.SetConfig(configManager)

	_config := configManager.GetConfig()

	loggerManager, err := logger.NewManager(ctx, configManager)
	if err != nil {
		return types.WrapError(err, "failed to register logger")
	}
	container.SetLogger(loggerManager)

	if _config.Health != nil && _config.Health.Enabled {
		healthManager, err = health.NewManager(ctx, configManager, loggerManager)
		if err != nil {
			return types.WrapError(err, "failed to register health manager")
		}
		container.SetHealth(healthManager)
	}

	if _config.Metrics != nil && _config.Metrics.Enabled {
		metricsManager, err = metrics.NewManager(ctx, configManager, loggerManager)
		if err != nil {
			return types.WrapError(err, "failed to register metrics manager")
		}
		container.SetMetrics(metricsManager)
	}

	journal, err := history.NewJournal(ctx, loggerManager, _config.History)
	if err != nil {
		return types.WrapError(err, "failed to register snapshot journal")
	}
	container.SetJournal(journal)

	if _config.Events != nil && _config.Events.Enabled {
		eventBroker, err = events.NewEventBroker(ctx, loggerManager, _config.Events, _config.Name)
		if err != nil {
			return types.WrapError(err, "failed to register event broker")
		}
		container.SetEvents(eventBroker)
	}

	cacheManager, err := cache.NewCacheManager(ctx, configManager, loggerManager, metricsManager, journal, eventBroker)
	if err != nil {
		return types.WrapError(err, "failed to register cache manager")
	}
	container.SetCache(cacheManager)

	if healthManager != nil {
		if checkable, ok := cacheManager.(interface {
			HealthChecker() types.HealthChecker
		}); ok {
			healthManager.RegisterChecker("cache", checkable.HealthChecker())
		}
	}

	if _config.Cron != nil && _config.Cron.Enabled {
		cronManager, err = cron.NewManager(ctx, configManager, loggerManager, metricsManager)
		if err != nil {
			return types.WrapError(err, "failed to register cron manager")
		}
		container.SetCron(cronManager)

		if _config.Cache != nil && _config.Cache.SweepSchedule != "" {
			err = cronManager.Add(sweepJobName, _config.Cache.SweepSchedule, func() {
				if _, sweepErr := cacheManager.InvalidateExpired(); sweepErr != nil {
					loggerManager.Error("Scheduled sweep failed", zap.Error(sweepErr))
				}
			})
			if err != nil {
				return types.WrapError(err, "failed to schedule expiry sweep")
			}
		}
	}

	if _config.Server != nil && _config.Server.Enabled {
		httpServer, err := server.NewHTTPServer(ctx, configManager, loggerManager, cacheManager, healthManager, metricsManager)
		if err != nil {
			return types.WrapError(err, "failed to register HTTP server")
		}
		container.SetHTTPServer(httpServer)
	}

	return nil
}
