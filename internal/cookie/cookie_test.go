package cookie

import (
	"bytes"
	"net"
	"testing"
)

func testClientCookie() [8]byte {
	var c [8]byte
	copy(c[:], []byte("testcook"))
	return c
}

func TestGenerateServerCookieIsRightSize(t *testing.T) {
	m, err := NewManager(Config{Enabled: true})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	clientIP := net.ParseIP("192.0.2.1").To4()
	sc := m.GenerateServerCookie(testClientCookie(), clientIP)
	if len(sc) != serverCookieSize {
		t.Errorf("server cookie size = %d, want %d", len(sc), serverCookieSize)
	}
}

func TestValidateServerCookieAcceptsItsOwn(t *testing.T) {
	m, err := NewManager(Config{Enabled: true})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	clientIP := net.ParseIP("192.0.2.1").To4()
	clientCookie := testClientCookie()
	serverCookie := m.GenerateServerCookie(clientCookie, clientIP)

	if !m.validateServerCookie(clientCookie, serverCookie, clientIP) {
		t.Error("expected freshly generated server cookie to validate")
	}
}

func TestValidateServerCookieRejectsTamperedOrWrongIP(t *testing.T) {
	m, err := NewManager(Config{Enabled: true})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	clientIP := net.ParseIP("192.0.2.1").To4()
	clientCookie := testClientCookie()
	serverCookie := m.GenerateServerCookie(clientCookie, clientIP)

	var tampered [8]byte
	copy(tampered[:], serverCookie[:])
	tampered[0] ^= 0xff
	if m.validateServerCookie(clientCookie, tampered, clientIP) {
		t.Error("expected tampered server cookie to be rejected")
	}

	wrongIP := net.ParseIP("192.0.2.99").To4()
	if m.validateServerCookie(clientCookie, serverCookie, wrongIP) {
		t.Error("expected server cookie bound to a different client IP to be rejected")
	}
}

func TestValidateServerCookieSurvivesRotation(t *testing.T) {
	m, err := NewManager(Config{Enabled: true})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	clientIP := net.ParseIP("192.0.2.1").To4()
	clientCookie := testClientCookie()
	serverCookie := m.GenerateServerCookie(clientCookie, clientIP)

	if err := m.rotateSecret(); err != nil {
		t.Fatalf("rotateSecret() error: %v", err)
	}

	if !m.validateServerCookie(clientCookie, serverCookie, clientIP) {
		t.Error("expected cookie issued under the previous secret to still validate once")
	}

	newServerCookie := m.GenerateServerCookie(clientCookie, clientIP)
	if !m.validateServerCookie(clientCookie, newServerCookie, clientIP) {
		t.Error("expected cookie issued under the new secret to validate")
	}
}

func TestValidateServerCookieRejectsAfterTwoRotations(t *testing.T) {
	m, err := NewManager(Config{Enabled: true})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	clientIP := net.ParseIP("192.0.2.1").To4()
	clientCookie := testClientCookie()
	serverCookie := m.GenerateServerCookie(clientCookie, clientIP)

	m.rotateSecret()
	m.rotateSecret()

	if m.validateServerCookie(clientCookie, serverCookie, clientIP) {
		t.Error("expected cookie from two rotations ago to be rejected")
	}
}

func TestParseCookie(t *testing.T) {
	tests := []struct {
		name          string
		data          []byte
		wantServerLen int
		wantErr       bool
	}{
		{name: "client cookie only", data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, wantServerLen: 0},
		{
			name:          "client + server cookie",
			data:          []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
			wantServerLen: 8,
		},
		{name: "too short", data: []byte{1, 2, 3}, wantErr: true},
		{name: "server cookie too long", data: make([]byte, 8+33), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, serverCookie, err := ParseCookie(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCookie() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(serverCookie) != tt.wantServerLen {
				t.Errorf("server cookie len = %d, want %d", len(serverCookie), tt.wantServerLen)
			}
		})
	}
}

func TestFormatCookieRoundTrips(t *testing.T) {
	clientCookie := testClientCookie()
	serverCookie := []byte{9, 10, 11, 12, 13, 14, 15, 16}

	data := FormatCookie(clientCookie, serverCookie)
	if len(data) != 16 {
		t.Fatalf("format client+server: len = %d, want 16", len(data))
	}

	parsedClient, parsedServer, err := ParseCookie(data)
	if err != nil {
		t.Fatalf("parse formatted cookie: %v", err)
	}
	if !bytes.Equal(parsedClient[:], clientCookie[:]) {
		t.Error("parsed client cookie mismatch")
	}
	if !bytes.Equal(parsedServer, serverCookie) {
		t.Error("parsed server cookie mismatch")
	}
}

func TestValidateQueryCookie(t *testing.T) {
	m, err := NewManager(Config{Enabled: true, RequireValid: true})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	clientIP := net.ParseIP("192.0.2.1").To4()
	clientCookie := testClientCookie()

	if bad := m.ValidateQueryCookie(clientCookie, nil, clientIP); bad {
		t.Error("first query without a server cookie should be accepted")
	}

	serverCookie := m.GenerateServerCookie(clientCookie, clientIP)
	if bad := m.ValidateQueryCookie(clientCookie, serverCookie[:], clientIP); bad {
		t.Error("query with a valid cookie should be accepted")
	}

	var invalid [8]byte
	copy(invalid[:], []byte("badsecrt"))
	if bad := m.ValidateQueryCookie(clientCookie, invalid[:], clientIP); !bad {
		t.Error("invalid cookie should trigger BADCOOKIE when RequireValid is set")
	}
}

func TestValidateQueryCookieNotRequired(t *testing.T) {
	m, err := NewManager(Config{Enabled: true, RequireValid: false})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	clientIP := net.ParseIP("192.0.2.1").To4()
	clientCookie := testClientCookie()

	var invalid [8]byte
	copy(invalid[:], []byte("badsecrt"))
	if bad := m.ValidateQueryCookie(clientCookie, invalid[:], clientIP); bad {
		t.Error("invalid cookie should be accepted when RequireValid is false")
	}
}

func TestCookiesDisabled(t *testing.T) {
	m, err := NewManager(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	clientIP := net.ParseIP("192.0.2.1").To4()
	var clientCookie, serverCookie [8]byte

	if bad := m.ValidateQueryCookie(clientCookie, serverCookie[:], clientIP); bad {
		t.Error("disabled cookies should always accept")
	}
}
