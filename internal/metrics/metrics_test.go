package metrics

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNoPlatformGaugesReportsSensorMissing(t *testing.T) {
	var g NoPlatformGauges

	_, err := g.CPUTempC()
	assert.True(t, isSensorMissing(err))

	_, err = g.GPUMemorySplit()
	assert.True(t, isSensorMissing(err))

	_, err = g.NPULoad()
	assert.True(t, isSensorMissing(err))
}

func TestSampleArrayPreservesFixedOrder(t *testing.T) {
	s := Sample{
		CPUTempC: 1, CPUPercent: 2, TotalMemoryMB: 3, UptimeSeconds: 4,
		GPUMemorySplit: 5, UsedMemoryMB: 6, UsedDiskPct: 7, NPULoad: 8,
	}
	assert.Equal(t, [8]float64{1, 2, 3, 4, 5, 6, 7, 8}, s.Array())
}

func TestSampleSubstitutesZeroWhenPlatformGaugeMissing(t *testing.T) {
	p := New(logrus.NewEntry(logrus.New()), NoPlatformGauges{}, func(Sample) {})
	sample := p.sample()
	assert.Equal(t, 0.0, sample.CPUTempC)
	assert.Equal(t, 0.0, sample.GPUMemorySplit)
	assert.Equal(t, 0.0, sample.NPULoad)
}
