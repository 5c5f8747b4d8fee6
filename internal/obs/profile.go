package obs

import (
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
)

// StartProfiler starts continuous profiling against a pyroscope server. It
// returns a no-op stop function when address is empty.
func StartProfiler(app, address string, tags map[string]string) (stop func() error, err error) {
	if address == "" {
		return func() error { return nil }, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: app,
		ServerAddress:   address,
		Tags:            tags,
		Logger:          profileLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, err
	}
	return profiler.Stop, nil
}

// profileLogger routes pyroscope output to the process log, debug lines dropped.
type profileLogger struct{}

func (profileLogger) Infof(format string, args ...any) { logs.Infof("pyroscope: "+format, args...) }

func (profileLogger) Debugf(string, ...any) {}

func (profileLogger) Errorf(format string, args ...any) { logs.Errorf("pyroscope: "+format, args...) }
