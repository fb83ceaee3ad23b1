package services

import (
	"context"

	"github.com/dataguardian/agent/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockCollector is a testify mock for procio.Collector.
type MockCollector struct {
	mock.Mock
}

func (m *MockCollector) Snapshot(ctx context.Context) ([]models.ProcessSample, error) {
	args := m.Called(ctx)
	samples, _ := args.Get(0).([]models.ProcessSample)
	return samples, args.Error(1)
}

// MockNotifier is a testify mock for notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, identity string, totalBytes uint64) error {
	args := m.Called(ctx, identity, totalBytes)
	return args.Error(0)
}
