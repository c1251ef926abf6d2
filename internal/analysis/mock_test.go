package analysis

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/expose-cli/pkg/manus"
	"github.com/sells-group/expose-cli/pkg/newsapi"
	"github.com/sells-group/expose-cli/pkg/nominatim"
	"github.com/sells-group/expose-cli/pkg/overpass"
)

// --- Manus Mock ---

type mockTasks struct {
	mock.Mock
}

func (m *mockTasks) Configured() bool {
	return m.Called().Bool(0)
}

func (m *mockTasks) CreateFileSlot(ctx context.Context, filename string) (*manus.FileSlot, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manus.FileSlot), args.Error(1)
}

func (m *mockTasks) UploadContent(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	return m.Called(ctx, uploadURL, data, contentType).Error(0)
}

func (m *mockTasks) UploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	args := m.Called(ctx, filename, data)
	return args.String(0), args.Error(1)
}

func (m *mockTasks) CreateTask(ctx context.Context, fileID string, pc manus.PromptContext) (string, error) {
	args := m.Called(ctx, fileID, pc)
	return args.String(0), args.Error(1)
}

func (m *mockTasks) GetTask(ctx context.Context, taskID string) (*manus.TaskStatus, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manus.TaskStatus), args.Error(1)
}

func (m *mockTasks) TaskURL(taskID string) string {
	return "https://manus.example/app/" + taskID
}

// --- Nominatim Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Resolve(ctx context.Context, address string) (*nominatim.Place, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nominatim.Place), args.Error(1)
}

// --- Overpass Mock ---

type mockAmenities struct {
	mock.Mock
}

func (m *mockAmenities) FetchNearby(ctx context.Context, lat, lon float64, radiusMeters int) (*overpass.Result, error) {
	args := m.Called(ctx, lat, lon, radiusMeters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*overpass.Result), args.Error(1)
}

// --- NewsAPI Mock ---

type mockNews struct {
	mock.Mock
}

func (m *mockNews) Search(ctx context.Context, locality string, limit int) []newsapi.Article {
	args := m.Called(ctx, locality, limit)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]newsapi.Article)
}
