//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestEngine_LifecycleEventTriggersCheck(t *testing.T) {
	cfg := LoadCfg()
	WaitTCP(t, "kafka", cfg.KafkaBootstrap, 60*time.Second)
	WaitHealthz(t, cfg.EngineBase, 90*time.Second)

	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	id := "it-" + RandID()
	SeedHTTPMonitor(t, db, id, cfg.Target)
	PublishJSON(t, cfg.KafkaBootstrap, cfg.ControlTopic, id, map[string]string{"event": "created", "monitor_id": id})

	got := ReadUntil(t, cfg.KafkaBootstrap, cfg.EventsTopic, id, 45*time.Second, func(ev Envelope) bool {
		if ev.Type != "check.completed" {
			return false
		}
		var cc struct {
			MonitorID string `json:"monitor_id"`
			Status    string `json:"status"`
		}
		return json.Unmarshal(ev.Data, &cc) == nil && cc.MonitorID == id
	})
	if !got {
		t.Fatalf("no check.completed event for %s", id)
	}

	status, uptime := MonitorHealth(t, db, id)
	if status == "unknown" {
		t.Fatalf("monitor %s still unknown after a check", id)
	}
	if n := CountLogs(t, db, id); n < 1 {
		t.Fatalf("expected a log entry, got %d", n)
	}
	t.Logf("[engine] %s status=%s uptime=%.1f", id, status, uptime)

	var sched struct {
		State string `json:"state"`
	}
	b := HTTPDo(t, http.MethodGet, cfg.EngineBase+"/v1/monitors/"+id+"/schedule", http.StatusOK)
	if err := json.Unmarshal(b, &sched); err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
}

func TestEngine_ControlDelete(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.EngineBase, 90*time.Second)

	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	id := "it-" + RandID()
	SeedHTTPMonitor(t, db, id, cfg.Target)

	HTTPDo(t, http.MethodPut, cfg.EngineBase+"/v1/monitors/"+id, http.StatusOK)
	HTTPDo(t, http.MethodGet, cfg.EngineBase+"/v1/monitors/"+id+"/schedule", http.StatusOK)

	if _, err := db.Exec(`DELETE FROM monitors WHERE id = $1`, id); err != nil {
		t.Fatalf("[db] delete: %v", err)
	}
	HTTPDo(t, http.MethodDelete, cfg.EngineBase+"/v1/monitors/"+id, http.StatusNoContent)
	HTTPDo(t, http.MethodGet, cfg.EngineBase+"/v1/monitors/"+id+"/schedule", http.StatusNotFound)
}
