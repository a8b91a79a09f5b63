package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateFiltersAccumulate(t *testing.T) {
	st := NewState()

	st.SetPlatformFilter("amazon")
	st.SetSearchTerm("mouse")

	f := st.CurrentFilters()
	assert.Equal(t, "amazon", f.Platform)
	assert.Equal(t, "mouse", f.SearchTerm)
	assert.Empty(t, f.Region)

	st.SetRegionFilter("eu")
	assert.Equal(t, "eu", st.CurrentFilters().Region)
	// Earlier selections survive later ones.
	assert.Equal(t, "amazon", st.CurrentFilters().Platform)
}

func TestRequestNavigationFiresHook(t *testing.T) {
	st := NewState()
	assert.Equal(t, ViewOverview, st.Snapshot().View)

	var fired []string
	st.SetNavigationHook(func(view string) { fired = append(fired, view) })

	st.RequestNavigation(ViewAnalysis)
	assert.Equal(t, ViewAnalysis, st.Snapshot().View)
	assert.Equal(t, []string{ViewAnalysis}, fired)

	// No hook installed is fine.
	st.SetNavigationHook(nil)
	st.RequestNavigation(ViewOverview)
	assert.Equal(t, ViewOverview, st.Snapshot().View)
	assert.Len(t, fired, 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	st := NewState()
	st.RecordDelegation("price drop analysis", "acme mouse")
	st.PushNotification("Delegated: price drop analysis")

	snap := st.Snapshot()
	snap.Delegations[0].Topic = "tampered"
	snap.Notifications[0].Text = "tampered"
	snap.Filters.Platform = "tampered"

	fresh := st.Snapshot()
	assert.Equal(t, "price drop analysis", fresh.Delegations[0].Topic)
	assert.Equal(t, "Delegated: price drop analysis", fresh.Notifications[0].Text)
	assert.Empty(t, fresh.Filters.Platform)
}

func TestSelectedProductAppearsInSnapshot(t *testing.T) {
	st := NewState()
	st.SetSelectedProduct("Acme Webcam")
	assert.Equal(t, "Acme Webcam", st.Snapshot().SelectedProduct)
}
