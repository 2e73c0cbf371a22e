// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/vulntrack/api/schemas"
	"github.com/xkilldash9x/vulntrack/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Importer() config.ImporterConfig {
	args := m.Called()
	return args.Get(0).(config.ImporterConfig)
}

func (m *MockConfig) Export() config.ExportConfig {
	args := m.Called()
	return args.Get(0).(config.ExportConfig)
}

// -- Store Mock --

// MockStore mocks the schemas.Store interface.
type MockStore struct {
	mock.Mock
}

var _ schemas.Store = (*MockStore)(nil)

// CreateReportGraph provides a mock function for persisting an import.
func (m *MockStore) CreateReportGraph(ctx context.Context, graph *schemas.ReportGraph) (*schemas.ReportGraph, error) {
	args := m.Called(ctx, graph)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.ReportGraph), args.Error(1)
}

func (m *MockStore) GetReport(ctx context.Context, id int64) (*schemas.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Report), args.Error(1)
}

func (m *MockStore) GetReportGraph(ctx context.Context, id int64) (*schemas.ReportGraph, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.ReportGraph), args.Error(1)
}

func (m *MockStore) ListReports(ctx context.Context, filter schemas.ReportFilter) ([]schemas.Report, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]schemas.Report), args.Int(1), args.Error(2)
}

func (m *MockStore) ListReportIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockStore) ListVulnerabilities(ctx context.Context, reportIDs []int64) ([]schemas.Vulnerability, error) {
	args := m.Called(ctx, reportIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.Vulnerability), args.Error(1)
}

func (m *MockStore) DeleteReport(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) UpdateReportNotes(ctx context.Context, id int64, notes string) error {
	args := m.Called(ctx, id, notes)
	return args.Error(0)
}

func (m *MockStore) Counts(ctx context.Context) (schemas.EntityCounts, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.EntityCounts), args.Error(1)
}

func (m *MockStore) GetInstance(ctx context.Context, id int64) (*schemas.VulnInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.VulnInstance), args.Error(1)
}

// UpdateInstanceStatus provides a mock function for a status transition.
func (m *MockStore) UpdateInstanceStatus(ctx context.Context, update schemas.StatusUpdate) (*schemas.VulnInstance, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.VulnInstance), args.Error(1)
}

func (m *MockStore) ListInstanceStatuses(ctx context.Context, reportID *int64) ([]schemas.FixStatus, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.FixStatus), args.Error(1)
}

func (m *MockStore) SearchInstances(ctx context.Context, filter schemas.SearchFilter) ([]schemas.SearchHit, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]schemas.SearchHit), args.Int(1), args.Error(2)
}

// AppendLog provides a mock function for the operation log writer.
func (m *MockStore) AppendLog(ctx context.Context, actionType, message string) error {
	args := m.Called(ctx, actionType, message)
	return args.Error(0)
}

func (m *MockStore) ListLogs(ctx context.Context, filter schemas.LogFilter) ([]schemas.OperationLog, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]schemas.OperationLog), args.Int(1), args.Error(2)
}
