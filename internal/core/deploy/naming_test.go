package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// UnitName Tests
// =============================================================================

func TestUnitName_Primary(t *testing.T) {
	got := Naming{Base: "shipway-app"}.UnitName("")
	assert.Equal(t, "shipway-app", got)
}

func TestUnitName_Secondary(t *testing.T) {
	got := Naming{Base: "shipway-app"}.UnitName("ftp")
	assert.Equal(t, "shipway-app-ftp", got)
}

func TestUnitDNSLabel_Secondary(t *testing.T) {
	got := Naming{Base: "shipway-app", DNSLabel: "myapp"}.UnitDNSLabel("ftp")
	assert.Equal(t, "myapp-ftp", got)
}

// =============================================================================
// SanitizeDNSLabel Tests
// =============================================================================

func TestSanitizeDNSLabel_TableDriven(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already-valid", "shipway-app", "shipway-app"},
		{"uppercase", "Shipway-App", "shipway-app"},
		{"spaces", "Shipway App", "shipway-app"},
		{"underscores", "web_v2", "web-v2"},
		{"dots-dropped", "web.v2.1", "webv21"},
		{"leading-hyphen-trimmed", "-app-", "app"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeDNSLabel(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeDNSLabel_CapsAt63(t *testing.T) {
	long := ""
	for i := 0; i < 10; i++ {
		long += "abcdefgh"
	}
	got := SanitizeDNSLabel(long)
	assert.Len(t, got, 63)
}

// =============================================================================
// Infrastructure Naming Tests
// =============================================================================

func TestStorageAccountName_StripsNonAlnum(t *testing.T) {
	got := StorageAccountName("shipway-rg")
	assert.Equal(t, "shipwayrgstg", got)
}

func TestStorageAccountName_CapsAt24(t *testing.T) {
	got := StorageAccountName("a-very-long-resource-group-name-indeed")
	assert.Equal(t, "averylongresourcegroupna", got)
	assert.Len(t, got, 24)
}

func TestKeyVaultName_Suffix(t *testing.T) {
	got := KeyVaultName("shipway-rg")
	assert.Equal(t, "shipwayrgkv", got)
}

func TestKeyVaultName_CapsAt24(t *testing.T) {
	got := KeyVaultName("a-very-long-resource-group-name")
	assert.Len(t, got, 24)
}

func TestIdentityName(t *testing.T) {
	got := IdentityName("shipway-rg")
	assert.Equal(t, "shipway-rg-identity", got)
}

func TestFileShareName(t *testing.T) {
	got := FileShareName("shipway-app", "workspace")
	assert.Equal(t, "shipway-app-workspace", got)
}
