package status

import (
	"time"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/service"
)

type RecordView struct {
	IPv4 string `json:"ipv4,omitempty"`
	IPv6 string `json:"ipv6,omitempty"`
}

func newRecordView(r ddns.Record) RecordView {
	var v RecordView
	if r.V4.IsValid() {
		v.IPv4 = r.V4.String()
	}
	if r.V6.IsValid() {
		v.IPv6 = r.V6.String()
	}
	return v
}

type ProviderView struct {
	Provider string `json:"provider"`
	Changed  bool   `json:"changed"`
	Error    string `json:"error,omitempty"`
}

type TickView struct {
	ID        string         `json:"id"`
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	Outcome   string         `json:"outcome"`
	Record    RecordView     `json:"record"`
	Previous  *RecordView    `json:"previous,omitempty"`
	Providers []ProviderView `json:"providers,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func newTickView(t *service.TickResult) *TickView {
	v := &TickView{
		ID:      t.ID,
		Start:   t.Start,
		End:     t.End,
		Outcome: string(t.Outcome),
		Record:  newRecordView(t.Record),
	}
	if t.CacheHit {
		prev := newRecordView(t.Previous)
		v.Previous = &prev
	}
	for _, p := range t.Providers {
		pv := ProviderView{Provider: p.Provider, Changed: p.Changed}
		if p.Err != nil {
			pv.Error = p.Err.Error()
		}
		v.Providers = append(v.Providers, pv)
	}
	if t.Err != nil {
		v.Error = t.Err.Error()
	}
	return v
}

type ServiceView struct {
	Name       string      `json:"name"`
	Running    bool        `json:"running"`
	Interval   string      `json:"interval"`
	DryRun     bool        `json:"dry_run"`
	Cached     *RecordView `json:"cached,omitempty"`
	CacheError string      `json:"cache_error,omitempty"`
	Last       *TickView   `json:"last,omitempty"`
}
