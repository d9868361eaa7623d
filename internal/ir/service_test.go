package ir

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceStoreKeys(t *testing.T) {
	assert.Equal(t, "kTCCServiceCamera", ServiceCamera.StoreKey())
	assert.Equal(t, "kTCCServiceMicrophone", ServiceMicrophone.StoreKey())
	assert.Equal(t, "", ServiceKind("screen").StoreKey())
}

func TestServiceLabel(t *testing.T) {
	assert.Equal(t, "Camera", ServiceCamera.Label())
	assert.Equal(t, "Microphone", ServiceMicrophone.Label())
	assert.Equal(t, "", ServiceKind("").Label())
}

func TestParseServiceKind(t *testing.T) {
	tests := []struct {
		input string
		want  ServiceKind
	}{
		{"camera", ServiceCamera},
		{"Camera", ServiceCamera},
		{" MICROPHONE ", ServiceMicrophone},
		{"kTCCServiceCamera", ServiceCamera},
		{"kTCCServiceMicrophone", ServiceMicrophone},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseServiceKind(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}

	_, err := ParseServiceKind("screen")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service")
}

func TestServiceKindAsFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var svc ServiceKind
	fs.Var(&svc, "service", "service kind")

	require.NoError(t, fs.Parse([]string{"--service", "Microphone"}))
	assert.Equal(t, ServiceMicrophone, svc)
	assert.Equal(t, "service", fs.Lookup("service").Value.Type())

	err := fs.Parse([]string{"--service", "bluetooth"})
	require.Error(t, err)
}
