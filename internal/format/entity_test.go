package format

import "testing"

const (
	testAccountID  = "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ"
	testContractID = "CA3D5KRYM6CB7OWQ6TWYRR3Z4T7GNZLKERYNZGGA5SOAOPIFY6YQGAXE"
)

func TestDetectEntityType(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected EntityType
	}{
		{"transaction hash lowercase", "3389e9f0f1a65f19736cacf544c2e825313e8447f569233bb8db39aa607c8889", EntityTransaction},
		{"transaction hash uppercase", "3389E9F0F1A65F19736CACF544C2E825313E8447F569233BB8DB39AA607C8889", EntityTransaction},
		{"account", testAccountID, EntityAccount},
		{"contract", testContractID, EntityContract},
		{"ledger sequence", "51234567", EntityLedger},
		{"ledger zero", "0", EntityLedger},
		{"asset", "USDC-GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN", EntityAsset},
		{"asset short code", "y-GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN", EntityAsset},
		{"asset code too long", "THIRTEENCHARS-GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJA", EntityUnknown},
		{"empty", "", EntityUnknown},
		{"whitespace only", "   ", EntityUnknown},
		{"random text", "hello world", EntityUnknown},
		{"G prefix wrong length", "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLT", EntityUnknown},
		{"G prefix bad checksum still routes to accounts", "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGA", EntityAccount},
		{"G prefix outside base32 alphabet", "G1!QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ", EntityUnknown},
		{"63 hex chars is not a tx", "389e9f0f1a65f19736cacf544c2e825313e8447f569233bb8db39aa607c8889", EntityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectEntityType(tt.query); got != tt.expected {
				t.Errorf("DetectEntityType(%q) = %q, expected %q", tt.query, got, tt.expected)
			}
		})
	}
}

func TestDetectEntityType_TrimsWhitespace(t *testing.T) {
	if got := DetectEntityType("  " + testAccountID + "  "); got != EntityAccount {
		t.Errorf("expected account after trimming, got %q", got)
	}
}

func TestValidAccountID(t *testing.T) {
	if !ValidAccountID(testAccountID) {
		t.Error("expected valid account ID")
	}
	if ValidAccountID("GABC") {
		t.Error("short string should not validate")
	}
	if ValidAccountID(testContractID) {
		t.Error("contract address should not validate as account")
	}
	// A mistyped key classifies as an account by shape but must still be
	// rejected by strict validation.
	if ValidAccountID("GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGA") {
		t.Error("bad checksum should not validate")
	}
}

func TestValidContractID(t *testing.T) {
	if !ValidContractID(testContractID) {
		t.Error("expected valid contract ID")
	}
	if ValidContractID(testAccountID) {
		t.Error("account should not validate as contract")
	}
	if ValidContractID("C123") {
		t.Error("short string should not validate")
	}
}
