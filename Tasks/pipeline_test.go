package Tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"Anvil/Models"
	"Anvil/Sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineLoadMergesSheets(t *testing.T) {
	src := newFakeSource()
	src.set("Maintenance Tasks", record("TM-1", "SN-1", "Lathe", "alice", ""))
	src.set("Repair Tasks",
		record("TR-1", "SN-1", "Lathe", "alice", ""),
		record("TR-2", "SN-2", "Lathe", "bob", ""),
	)
	p := NewPipeline(src, testSheets.All(), 100, nil)

	loaded, err := p.Load(context.Background(), alice)
	require.NoError(t, err)
	assert.False(t, loaded.Degraded)
	assert.ElementsMatch(t, []string{"TM-1", "TR-1"}, taskNos(loaded.Records))
}

func TestPipelineLoadDegradesFailingSheet(t *testing.T) {
	src := newFakeSource()
	src.set("Maintenance Tasks", record("TM-1", "SN-1", "Lathe", "alice", ""))
	src.errs["Repair Tasks"] = &Sheets.EmptyResultError{SheetName: "Repair Tasks"}
	p := NewPipeline(src, testSheets.All(), 100, nil)

	loaded, err := p.Load(context.Background(), admin)
	require.NoError(t, err)
	assert.True(t, loaded.Degraded)
	assert.Equal(t, []string{"TM-1"}, taskNos(loaded.Records))
}

func TestPipelineLoadPropagatesCancellation(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{})
	p := NewPipeline(src, testSheets.All(), 100, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Load(ctx, admin)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPipelineLoadFlagsUnknownRole(t *testing.T) {
	src := newFakeSource()
	src.set("Maintenance Tasks", record("TM-1", "SN-1", "Lathe", "bob", ""))
	p := NewPipeline(src, []string{"Maintenance Tasks"}, 100, nil)

	loaded, err := p.Load(context.Background(), Models.RoleContext{Role: "viewer", Username: "carol"})
	require.NoError(t, err)
	assert.True(t, loaded.AuthDegraded)
	assert.Len(t, loaded.Records, 1)
}

func TestPipelineReconcile(t *testing.T) {
	src := newFakeSource()
	src.set("Maintenance Tasks",
		record("TM-1", "SN-42", "Conveyor Rolls 2", "alice", ""),
		record("TM-2", "SN-43", "Conveyor Rolls 3", "alice", "2024-01-02"),
		record("TM-3", "SN-44", "Conveyor Rolls 4", "alice", ""),
		record("TM-4", "SN-45", "Conveyor Rolls 5", "alice", ""),
		record("TM-5", "SN-50", "Hydraulic Pump A", "alice", ""),
	)
	p := NewPipeline(src, []string{"Maintenance Tasks"}, 100, nil)

	res, err := p.Reconcile(context.Background(), alice, "SN-42")
	require.NoError(t, err)
	assert.False(t, res.NotFound)
	assert.Equal(t, "conveyor rolls 2", res.Identity.BaseName)
	assert.Equal(t, []string{"TM-1", "TM-3", "TM-4"}, taskNos(res.View.Active))
	assert.Equal(t, []string{"TM-2"}, taskNos(res.View.Completed))
	assert.Equal(t, 25, res.View.ProgressPercent)

	res, err = p.Reconcile(context.Background(), alice, "SN-999")
	assert.ErrorIs(t, err, ErrAnchorNotFound)
	assert.True(t, res.NotFound)
	assert.Empty(t, res.View.Active)
	assert.Equal(t, 0, res.View.ProgressPercent)
}

func TestPipelineReconcileOutageIsNoData(t *testing.T) {
	src := newFakeSource()
	src.errs["Maintenance Tasks"] = &Sheets.EmptyResultError{SheetName: "Maintenance Tasks"}
	src.errs["Repair Tasks"] = &Sheets.EmptyResultError{SheetName: "Repair Tasks"}
	p := NewPipeline(src, testSheets.All(), 100, nil)

	res, err := p.Reconcile(context.Background(), alice, "SN-42")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.False(t, res.NotFound)
	assert.Empty(t, res.View.Active)
	assert.Empty(t, res.View.Completed)
	assert.Equal(t, 0, res.View.ProgressPercent)
}

func TestPipelineReconcilePartialOutageDoesNotClaimMissing(t *testing.T) {
	src := newFakeSource()
	src.set("Maintenance Tasks", record("TM-1", "SN-1", "Lathe", "alice", ""))
	src.errs["Repair Tasks"] = &Sheets.EmptyResultError{SheetName: "Repair Tasks"}
	p := NewPipeline(src, testSheets.All(), 100, nil)

	res, err := p.Reconcile(context.Background(), alice, "SN-77")
	require.NoError(t, err, "SN-77 may live in the unreadable sheet")
	assert.True(t, res.Degraded)
	assert.False(t, res.NotFound)

	res, err = p.Reconcile(context.Background(), alice, "SN-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"TM-1"}, taskNos(res.View.Active))
}

func TestPipelineReconcileUsesFallbackQuery(t *testing.T) {
	table := tableOf(record("TM-1", "SN-42", "Conveyor Rolls 2", "alice", ""))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("sheetName") != "" {
			_, _ = w.Write([]byte(`{"success":false,"error":"unknown parameters"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(Sheets.QueryResponse{Table: &table})
	}))
	defer srv.Close()

	client := Sheets.NewClient(srv.URL, "sheet-1", srv.Client(), nil)
	p := NewPipeline(client, []string{"Maintenance Tasks"}, 100, nil)

	res, err := p.Reconcile(context.Background(), alice, "SN-42")
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, []string{"TM-1"}, taskNos(res.View.Active))
}
