package mocks

import "github.com/stretchr/testify/mock"

//Sender is a mock of messages.Sender
type Sender struct {
	mock.Mock
}

//Send is a mocked Send function
func (m *Sender) Send(message interface{}, queue string) error {
	args := m.Mock.Called(message, queue)
	return args.Error(0)
}
