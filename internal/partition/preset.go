// Package partition maps global row ordinals onto partitions of skewed
// sizes, so workloads can generate partitioned test data deterministically.
//
// A preset is declared with a total row count, a base partition size and a
// group spec such as "5x2,0.5x10": two partitions of 5*base rows followed by
// ten partitions of base/2 rows. Rows not covered by groups go to partitions
// of the base size; a remainder smaller than base forms one final, shorter
// partition.
package partition

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/torosent/crankdb/internal/dberr"
)

// Group declares Partitions partitions holding base*Multiplier rows each.
type Group struct {
	Multiplier float64
	Partitions uint64
}

// Partition describes the partition owning an ordinal.
type Partition struct {
	Idx     uint64
	RowsNum uint64
}

// segment is a run of equally sized partitions.
type segment struct {
	firstRow  uint64
	firstIdx  uint64
	rows      uint64
	count     uint64
	rowsTotal uint64
}

func (s segment) endRow() uint64 { return s.firstRow + s.rowsTotal }

// Preset is an immutable compiled row distribution.
type Preset struct {
	Name      string
	TotalRows uint64
	BaseRows  uint64
	Groups    []Group

	segments   []segment
	partitions uint64
}

// ParseGroups parses a comma separated list of "<multiplier>x<partitions>".
func ParseGroups(spec string) ([]Group, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	var groups []Group
	for _, raw := range strings.Split(spec, ",") {
		entry := strings.TrimSpace(raw)
		sep := strings.IndexAny(entry, "x*")
		if sep <= 0 || sep == len(entry)-1 {
			return nil, dberr.Argument("invalid partition group %q: expected <multiplier>x<partitions>", entry)
		}
		mult, err := strconv.ParseFloat(strings.TrimSpace(entry[:sep]), 64)
		if err != nil || mult <= 0 || math.IsInf(mult, 0) || math.IsNaN(mult) {
			return nil, dberr.Argument("invalid multiplier in partition group %q", entry)
		}
		count, err := strconv.ParseUint(strings.TrimSpace(entry[sep+1:]), 10, 64)
		if err != nil || count == 0 {
			return nil, dberr.Argument("invalid partition count in partition group %q", entry)
		}
		groups = append(groups, Group{Multiplier: mult, Partitions: count})
	}
	return groups, nil
}

// NewPreset compiles a preset. It fails with an ArgumentError when the
// groups declare more rows than totalRows.
func NewPreset(name string, totalRows, baseRows uint64, groupSpec string) (*Preset, error) {
	if totalRows == 0 {
		return nil, dberr.Argument("preset %q: total rows must be > 0", name)
	}
	if baseRows == 0 {
		return nil, dberr.Argument("preset %q: base rows per partition must be > 0", name)
	}
	groups, err := ParseGroups(groupSpec)
	if err != nil {
		return nil, err
	}

	p := &Preset{Name: name, TotalRows: totalRows, BaseRows: baseRows, Groups: groups}
	var row, idx uint64
	add := func(rows, count uint64) {
		s := segment{firstRow: row, firstIdx: idx, rows: rows, count: count, rowsTotal: rows * count}
		p.segments = append(p.segments, s)
		row += s.rowsTotal
		idx += count
	}

	for _, g := range groups {
		rows := uint64(math.Round(float64(baseRows) * g.Multiplier))
		if rows == 0 {
			return nil, dberr.Argument("preset %q: group %gx%d yields empty partitions", name, g.Multiplier, g.Partitions)
		}
		if g.Partitions > (totalRows-row)/rows {
			return nil, dberr.Argument("preset %q: groups declare more than %d rows", name, totalRows)
		}
		add(rows, g.Partitions)
	}

	remainder := totalRows - row
	if full := remainder / baseRows; full > 0 {
		add(baseRows, full)
	}
	if short := remainder % baseRows; short > 0 {
		add(short, 1)
	}
	p.partitions = idx
	return p, nil
}

// NumPartitions returns the number of partitions in the preset.
func (p *Preset) NumPartitions() uint64 { return p.partitions }

// Lookup returns the partition owning ordinal.
func (p *Preset) Lookup(ordinal uint64) (Partition, error) {
	if ordinal >= p.TotalRows {
		return Partition{}, dberr.Lookup("preset %q: ordinal %d out of range [0, %d)", p.Name, ordinal, p.TotalRows)
	}
	i := sort.Search(len(p.segments), func(i int) bool {
		return p.segments[i].endRow() > ordinal
	})
	s := p.segments[i]
	return Partition{
		Idx:     s.firstIdx + (ordinal-s.firstRow)/s.rows,
		RowsNum: s.rows,
	}, nil
}

// PartitionRows returns the row count of partition idx.
func (p *Preset) PartitionRows(idx uint64) (uint64, error) {
	if idx >= p.partitions {
		return 0, dberr.Lookup("preset %q: partition %d out of range [0, %d)", p.Name, idx, p.partitions)
	}
	i := sort.Search(len(p.segments), func(i int) bool {
		s := p.segments[i]
		return s.firstIdx+s.count > idx
	})
	return p.segments[i].rows, nil
}

// Table holds presets by name.
type Table map[string]*Preset

// Init compiles and stores a preset, replacing any preset with that name.
func (t Table) Init(name string, totalRows, baseRows uint64, groupSpec string) error {
	p, err := NewPreset(name, totalRows, baseRows, groupSpec)
	if err != nil {
		return err
	}
	t[name] = p
	return nil
}

// Lookup resolves ordinal in the named preset.
func (t Table) Lookup(name string, ordinal uint64) (Partition, error) {
	p, ok := t[name]
	if !ok {
		return Partition{}, dberr.Lookup("unknown partition preset %q", name)
	}
	return p.Lookup(ordinal)
}

// Clone copies the table. Presets are immutable and shared.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
