package main

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"

	"github.com/atlassian/gocollectd/pkg/collectd"
)

type seriesData struct {
	count           uint64 // atomic
	typeName        string
	instanceCard    uint
	valueLimit      uint
	cumulative      map[string]uint64 // nil for kinds that reset on every send
	newCumulative   func(uint64) collectd.Value
	hostCardinality uint
}

type valueGenerator struct {
	rnd        *rand.Rand
	hostFormat string
	plugin     string
	interval   float64

	gauges    seriesData
	counters  seriesData
	derives   seriesData
	absolutes seriesData
}

func (sd *seriesData) descriptor(vg *valueGenerator, now float64) collectd.Descriptor {
	return collectd.Descriptor{
		Host:         fmt.Sprintf(vg.hostFormat, vg.rnd.Intn(int(sd.hostCardinality))),
		Plugin:       vg.plugin,
		Type:         sd.typeName,
		TypeInstance: strconv.Itoa(vg.rnd.Intn(int(sd.instanceCard))),
		Time:         now,
		Interval:     vg.interval,
	}
}

func (vg *valueGenerator) nextGauge(now float64) (collectd.Descriptor, collectd.Value) {
	atomic.AddUint64(&vg.gauges.count, ^uint64(0))
	d := vg.gauges.descriptor(vg, now)
	return d, collectd.GaugeValue(vg.rnd.Float64() * float64(vg.gauges.valueLimit))
}

// nextCumulative steps the series forward so consecutive values never go backwards.
func (vg *valueGenerator) nextCumulative(sd *seriesData, now float64) (collectd.Descriptor, collectd.Value) {
	atomic.AddUint64(&sd.count, ^uint64(0))
	d := sd.descriptor(vg, now)
	v := 1 + uint64(vg.rnd.Intn(int(sd.valueLimit)+1))
	if sd.cumulative != nil {
		key := d.Host + "/" + d.TypeInstance
		v += sd.cumulative[key]
		sd.cumulative[key] = v
	}
	return d, sd.newCumulative(v)
}

func (vg *valueGenerator) next(now float64) (collectd.Descriptor, collectd.Value, bool) {
	// We can safely read these non-atomically, because this goroutine is the only one that writes to them.
	total := vg.gauges.count + vg.counters.count + vg.derives.count + vg.absolutes.count
	if total == 0 {
		return collectd.Descriptor{}, collectd.Value{}, false
	}

	var d collectd.Descriptor
	var v collectd.Value
	n := uint64(vg.rnd.Int63n(int64(total)))
	if n < vg.gauges.count {
		d, v = vg.nextGauge(now)
	} else if n < vg.gauges.count+vg.counters.count {
		d, v = vg.nextCumulative(&vg.counters, now)
	} else if n < vg.gauges.count+vg.counters.count+vg.derives.count {
		d, v = vg.nextCumulative(&vg.derives, now)
	} else {
		d, v = vg.nextCumulative(&vg.absolutes, now)
	}
	return d, v, true
}
