package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewManager(t *testing.T) {
	q := NewQueue(offlineClient(t), 2)
	m := NewManager(q, time.Minute)

	assert.Same(t, q, m.GetQueue())
	assert.NotNil(t, m.stopCh)
	assert.False(t, m.IsRunning())
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(NewQueue(offlineClient(t), 1), 0)
	assert.NotPanics(t, m.Stop)
	assert.False(t, m.IsRunning())
}
