package mocks

import (
	"testing"

	"go.uber.org/mock/gomock"
)

func TestMockCollaboratorSatisfiesExpectations(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockCollaborator(ctrl)

	m.EXPECT().Readable().Return(true)
	m.EXPECT().ReadAt(gomock.Any(), 0).Return(5, nil)

	if !m.Readable() {
		t.Fatal("Readable() = false, want true")
	}
	n, err := m.ReadAt(make([]byte, 5), 0)
	if err != nil || n != 5 {
		t.Fatalf("ReadAt = (%d, %v), want (5, nil)", n, err)
	}
}
