package service

import (
	"errors"
	"time"

	"virtualbank/internal/infrastructure/metrics"
	"virtualbank/internal/logging"
	"virtualbank/internal/model"

	"go.uber.org/zap"
)

// OperationState 单次资金操作所处的阶段
//
//	Validating -> Admitted -> Committing -> Committed | Aborted
//
// Aborted 只能由提交前的阶段进入，或由提交失败后的整体回滚进入
type OperationState int

const (
	StateValidating OperationState = iota
	StateAdmitted
	StateCommitting
	StateCommitted
	StateAborted
)

func (s OperationState) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateAdmitted:
		return "admitted"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// operation 记录一次请求的阶段变化，结束时上报指标
type operation struct {
	name    string
	state   OperationState
	started time.Time
	logger  *logging.Logger
	metrics metrics.Recorder
}

func (s *FundsService) start(name string) *operation {
	return &operation{
		name:    name,
		state:   StateValidating,
		started: time.Now(),
		logger:  s.logger.With(zap.String("operation", name)),
		metrics: s.metrics,
	}
}

func (o *operation) enter(state OperationState) {
	o.state = state
}

func (o *operation) finish(err error) {
	result := metrics.ResultCommitted
	switch {
	case err == nil:
		o.state = StateCommitted
	case errors.Is(err, model.ErrOutcomeUnknown):
		// 提交结果未知，调用方需要重新查询余额，不能当作失败处理
		result = metrics.ResultUnknown
		o.logger.Error("提交结果未知", zap.Stringer("state", o.state), zap.Error(err))
	default:
		reached := o.state
		o.state = StateAborted
		result = metrics.ResultAborted
		o.logger.Debug("操作中止", zap.Stringer("reached", reached), zap.Error(err))
	}
	o.metrics.ObserveOperation(o.name, result, time.Since(o.started))
}
