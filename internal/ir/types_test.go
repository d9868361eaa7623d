package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/Applications/Foo.app", "Foo"},
		{"/Applications/Foo.app/", "Foo"},
		{"/Users/me/Applications/Zoom Workplace.app", "Zoom Workplace"},
		{"/Applications/NoExtension", "NoExtension"},
		// decomposed e + combining acute accent
		{"/Applications/Cafe\u0301.app", "Caf\u00e9"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, AppName(tt.path))
		})
	}
}

func TestNewAppRecord(t *testing.T) {
	r := NewAppRecord("/Applications/Foo.app")

	assert.Equal(t, "/Applications/Foo.app", r.ID)
	assert.Equal(t, r.ID, r.Path)
	assert.Equal(t, "Foo", r.Name)
	assert.False(t, r.HasIdentifier())
	assert.Equal(t, PermissionState{}, r.Permissions)
}

func TestPermissionStateWithAndGet(t *testing.T) {
	var p PermissionState

	p = p.With(ServiceCamera, true)
	assert.True(t, p.Get(ServiceCamera))
	assert.False(t, p.Get(ServiceMicrophone))

	p = p.With(ServiceMicrophone, true).With(ServiceCamera, false)
	assert.False(t, p.Get(ServiceCamera))
	assert.True(t, p.Get(ServiceMicrophone))

	assert.False(t, p.Get(ServiceKind("screen")))
}

func TestPermissionStateSettled(t *testing.T) {
	p := PermissionState{Camera: true, Pending: true}
	settled := p.Settled()

	assert.False(t, settled.Pending)
	assert.True(t, settled.Camera)
	assert.True(t, p.Pending, "original must not change")
}

func TestSortRecords(t *testing.T) {
	records := []AppRecord{
		NewAppRecord("/Applications/Zoom.app"),
		NewAppRecord("/Applications/Arc.app"),
		NewAppRecord("/Applications/Discord.app"),
	}
	SortRecords(records)

	require.Len(t, records, 3)
	assert.Equal(t, "Arc", records[0].Name)
	assert.Equal(t, "Discord", records[1].Name)
	assert.Equal(t, "Zoom", records[2].Name)
}

func TestGrantRecord(t *testing.T) {
	rec := NewGrantRecord(ServiceMicrophone, "com.example.foo", 1700000000)

	assert.Equal(t, "kTCCServiceMicrophone", rec.Service)
	assert.Equal(t, "com.example.foo", rec.Client)
	assert.Equal(t, 0, rec.ClientType)
	assert.Equal(t, 2, rec.AuthValue)
	assert.Equal(t, 4, rec.AuthReason)
	assert.Equal(t, 1, rec.AuthVersion)
	assert.Equal(t, "UNUSED", rec.IndirectObjectIdentifier)
	assert.Equal(t, 0, rec.Flags)
	assert.Equal(t, int64(1700000000), rec.LastModified)
	assert.True(t, Granted(rec.AuthValue))
	assert.False(t, Granted(0))
	assert.False(t, Granted(3))
}
