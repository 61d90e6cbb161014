package setup

import (
	"github.com/The127/ioc"
	"github.com/the127/chunkyard/internal/services/clock"
)

func Clock(dc *ioc.DependencyCollection) {
	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) clock.Service {
		return clock.NewClockService()
	})
}
