// Package stats implements the API methods clients call to report usage.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"statsdb/database"
	"statsdb/dispatch"
	"statsdb/metrics"
	"statsdb/models"
)

// CrashNotifier forwards stored crashes to whoever triages them
type CrashNotifier interface {
	NotifyCrash(ctx context.Context, mc *models.MachineConfig, crash *models.Crash) error
}

// Service holds the dependencies of the stats methods
type Service struct {
	machines *database.MachineConfigRepository

	usage *database.UsageRepository

	notifier CrashNotifier

	metrics *metrics.Metrics

	log *zap.Logger
}

// NewService creates the stats methods. notifier and m may be nil.
func NewService(machines *database.MachineConfigRepository, usage *database.UsageRepository, notifier CrashNotifier, m *metrics.Metrics, log *zap.Logger) *Service {

	if log == nil {
		log = zap.NewNop()
	}

	return &Service{machines: machines, usage: usage, notifier: notifier, metrics: m, log: log}
}

// Handlers lists the methods for the dispatch registry
func (s *Service) Handlers() []dispatch.Handler {

	return []dispatch.Handler{

		{Name: "ping", Func: s.ping},

		{Name: "send_stats", Func: s.sendStats},

		{Name: "send_crash", Func: s.sendCrash},

		{Name: "send_license_failure", Func: s.sendLicenseFailure},

		{Name: "machine_info", Auth: dispatch.AuthRequired, Func: s.machineInfo},
	}
}

func (s *Service) ping(context.Context, *dispatch.Call) (any, error) {
	return "pong", nil
}

// resolve decodes the user_info argument and finds or creates its machine config
func (s *Service) resolve(ctx context.Context, call *dispatch.Call) (*models.MachineConfig, error) {

	var info models.UserInfo

	if err := call.Arg(0, "user_info", &info); err != nil {
		return nil, err
	}

	mc, created, err := s.machines.Resolve(ctx, info, call.RemoteAddr)

	if err != nil {

		var fieldErr *models.FieldError

		if errors.As(err, &fieldErr) {
			return nil, dispatch.Domainf(0, "%s", fieldErr.Error())
		}

		return nil, err
	}

	if created {
		s.metrics.MachineCreated()
	}

	return mc, nil
}

func (s *Service) sendStats(ctx context.Context, call *dispatch.Call) (any, error) {

	mc, err := s.resolve(ctx, call)

	if err != nil {
		return nil, err
	}

	var arg statsArg

	if err := call.Arg(1, "stats", &arg); err != nil {
		return nil, err
	}

	batch, err := decodeBatch(arg, mc.ID)

	if err != nil {
		return nil, dispatch.Domainf(0, "%s", err.Error())
	}

	outcome, err := s.usage.RecordBatch(ctx, batch)

	if err != nil {
		return nil, err
	}

	if outcome == database.OutcomeDuplicate {
		s.metrics.Duplicate()
	}

	return true, nil
}

func (s *Service) sendCrash(ctx context.Context, call *dispatch.Call) (any, error) {

	mc, err := s.resolve(ctx, call)

	if err != nil {
		return nil, err
	}

	var arg crashArg

	if err := call.Arg(1, "crashlog", &arg); err != nil {
		return nil, err
	}

	crash, err := s.usage.RecordCrash(ctx, mc.ID, arg.LogType, arg.LogData)

	if err != nil {
		return nil, err
	}

	s.log.Info("crash stored",

		zap.Uint("machine_config_id", mc.ID),

		zap.String("log_type", crash.LogType),
	)

	if s.notifier != nil {

		if err := s.notifier.NotifyCrash(ctx, mc, crash); err != nil {
			s.log.Warn("failed to send crash notification", zap.Uint("crash_id", crash.ID), zap.Error(err))
		}
	}

	return true, nil
}

func (s *Service) sendLicenseFailure(ctx context.Context, call *dispatch.Call) (any, error) {

	mc, err := s.resolve(ctx, call)

	if err != nil {
		return nil, err
	}

	var info json.RawMessage

	if call.HasArg(1, "failure_info") {

		if err := call.Arg(1, "failure_info", &info); err != nil {
			return nil, err
		}
	}

	s.log.Info("license failure reported",

		zap.Uint("machine_config_id", mc.ID),

		zap.String("version", mc.Version),

		zap.ByteString("failure_info", info),
	)

	return true, nil
}

type machineInfo struct {
	ID uint `json:"id"`

	CreatedAt time.Time `json:"created_at"`

	LastSeen time.Time `json:"last_seen"`
}

func (s *Service) machineInfo(ctx context.Context, call *dispatch.Call) (any, error) {

	mc, err := s.resolve(ctx, call)

	if err != nil {
		return nil, err
	}

	return machineInfo{ID: mc.ID, CreatedAt: mc.CreatedAt.UTC(), LastSeen: mc.LastSeen.UTC()}, nil
}
