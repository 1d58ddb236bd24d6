package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type probe struct {
	name  string
	phase Phase
	log   *[]string
}

func (p *probe) Phase() Phase { return p.phase }
func (p *probe) Update(time.Duration) {
	*p.log = append(*p.log, p.name)
}

func TestRunner_PhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&probe{"cleanup", PhaseCleanup, &log})
	r.Register(&probe{"script", PhaseScript, &log})
	r.Register(&probe{"update-a", PhaseUpdate, &log})
	r.Register(&probe{"update-b", PhaseUpdate, &log})
	r.Register(&probe{"dispatch", PhaseDispatch, &log})

	r.Tick(time.Millisecond)
	assert.Equal(t, []string{"script", "dispatch", "update-a", "update-b", "cleanup"}, log)
	assert.Equal(t, 5, r.Len())
}

func TestRunner_TickPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&probe{"script", PhaseScript, &log})
	r.Register(&probe{"cleanup", PhaseCleanup, &log})

	r.TickPhase(PhaseCleanup, 0)
	assert.Equal(t, []string{"cleanup"}, log)
	assert.Equal(t, "cleanup", PhaseCleanup.String())
}
