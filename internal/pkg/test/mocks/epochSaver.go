package mocks

import (
	"context"

	"github.com/airenas/sumtrainer/internal/pkg/mongo"
	"github.com/stretchr/testify/mock"
)

//EpochSaver is a mock
type EpochSaver struct {
	mock.Mock
}

//Save is a mocked Save function
func (m *EpochSaver) Save(ctx context.Context, rec *mongo.EpochRecord) error {
	args := m.Mock.Called(ctx, rec)
	return args.Error(0)
}
