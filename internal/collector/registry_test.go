package collector

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openharvest/harvester/internal/model"
)

type stubCollector struct {
	info model.CollectorInfo
}

func (s *stubCollector) Info() model.CollectorInfo { return s.info }

func (s *stubCollector) ValidateDateFormat(string) bool { return true }

func (s *stubCollector) ScrapeAnnouncements(context.Context, string, string, Options) ([]map[string]any, error) {
	return nil, nil
}

func (s *stubCollector) ScrapeFullContent(context.Context, []string, Options) ([]map[string]any, error) {
	return nil, nil
}

func goodFactory(name string) Factory {
	return func() (Collector, error) {
		return &stubCollector{info: model.CollectorInfo{Name: name, Website: name + ".test"}}, nil
	}
}

func TestDiscoverSkipsFailingFactory(t *testing.T) {
	reg := NewRegistry()
	reg.Register("good", goodFactory("good"))
	reg.Register("broken", func() (Collector, error) {
		return nil, eris.New("missing credentials")
	})
	reg.Register("alsogood", goodFactory("alsogood"))

	n := reg.Discover()

	assert.Equal(t, 2, n, "one bad factory must not abort discovery")
	assert.Equal(t, []string{"good", "alsogood"}, reg.Names())
}

func TestDiscoverRejectsIncompleteInfo(t *testing.T) {
	reg := NewRegistry()
	reg.Register("anon", func() (Collector, error) {
		return &stubCollector{info: model.CollectorInfo{Website: "anon.test"}}, nil
	})
	reg.Register("nowhere", func() (Collector, error) {
		return &stubCollector{info: model.CollectorInfo{Name: "nowhere"}}, nil
	})
	reg.Register("good", goodFactory("good"))

	assert.Equal(t, 1, reg.Discover())
	assert.Equal(t, []string{"good"}, reg.Names())
}

func TestNamesFollowRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		reg.Register(name, goodFactory(name))
	}
	reg.Discover()

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, reg.Names())
}

func TestReRegisterKeepsPosition(t *testing.T) {
	reg := NewRegistry()
	reg.Register("first", goodFactory("first"))
	reg.Register("second", goodFactory("second"))
	reg.Register("first", goodFactory("first"))
	reg.Discover()

	assert.Equal(t, []string{"first", "second"}, reg.Names())
}

func TestGetUnknownListsAvailable(t *testing.T) {
	reg := NewRegistry()
	reg.Register("fda", goodFactory("fda"))
	reg.Register("cdc", goodFactory("cdc"))
	reg.Discover()

	_, err := reg.Get("nih")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nih" not found`)
	assert.Contains(t, err.Error(), "cdc, fda")
}

func TestGetReturnsLiveInstance(t *testing.T) {
	reg := NewRegistry()
	reg.Register("fda", goodFactory("fda"))
	reg.Discover()

	c, err := reg.Get("fda")
	require.NoError(t, err)
	assert.Equal(t, "fda", c.Info().Name)
}
