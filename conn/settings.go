/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package conn

import (
	"time"

	"github.com/spf13/viper"

	"github.com/nabbar/quicgo/qerr"
	"github.com/nabbar/quicgo/qtp"
)

// TransportSettings is this endpoint's own half of the negotiated
// transport parameters, plus the locally-owned knobs spec §1 reserves to
// the core rather than the handshake engine (datagram size ceiling,
// anti-optimistic-ack skip factor, key-update packet interval).
// Loadable with viper, the teacher's configuration library, following the
// same typed-struct-plus-Validate shape as certificates/config.go.
type TransportSettings struct {
	Local qtp.Parameters

	MaxDatagramSize int           `mapstructure:"max_datagram_size"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	KeepAliveEvery  time.Duration `mapstructure:"keep_alive_every"`

	// SkipPacketNumberDenominator feeds ackloss.Tracker.ReserveNext's
	// anti-optimistic-ack probability; zero disables deliberate skipping.
	SkipPacketNumberDenominator int `mapstructure:"skip_packet_number_denominator"`

	// KeyUpdateEveryNPackets triggers a key update once this many 1-RTT
	// packets have been sent in the current phase; zero disables
	// core-initiated key updates (the peer may still initiate one).
	KeyUpdateEveryNPackets uint64 `mapstructure:"key_update_every_n_packets"`

	IsServer bool `mapstructure:"is_server"`

	DisableActiveMigration bool `mapstructure:"disable_active_migration"`

	StatelessResetSecret [32]byte `mapstructure:"-"`
}

// Option configures a TransportSettings at construction time, matching the
// teacher's functional-options constructors used throughout cluster/ and
// certificates/.
type Option func(*TransportSettings)

func WithServer(isServer bool) Option {
	return func(s *TransportSettings) { s.IsServer = isServer }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(s *TransportSettings) { s.IdleTimeout = d }
}

func WithKeyUpdateInterval(packets uint64) Option {
	return func(s *TransportSettings) { s.KeyUpdateEveryNPackets = packets }
}

func WithDisableActiveMigration(v bool) Option {
	return func(s *TransportSettings) { s.DisableActiveMigration = v }
}

func WithLocalParameters(p qtp.Parameters) Option {
	return func(s *TransportSettings) { s.Local = p }
}

// NewTransportSettings returns settings seeded with qtp.Default() local
// parameters and this package's own defaults, then applies opts.
func NewTransportSettings(opts ...Option) TransportSettings {
	s := TransportSettings{
		Local:                       qtp.Default(),
		MaxDatagramSize:             1452,
		IdleTimeout:                 30 * time.Second,
		KeepAliveEvery:              0,
		SkipPacketNumberDenominator: 0,
		KeyUpdateEveryNPackets:      0,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// LoadFromViper reads a TransportSettings from v's "quic" key, following
// the teacher's config/viper.go convention of a namespaced sub-tree
// unmarshalled straight into a mapstructure-tagged struct.
func LoadFromViper(v *viper.Viper) (TransportSettings, error) {
	s := NewTransportSettings()
	if v == nil {
		return s, nil
	}
	if err := v.UnmarshalKey("quic", &s); err != nil {
		return TransportSettings{}, qerr.Local(qerr.InternalError, "conn: unmarshal transport settings", err)
	}
	return s, s.Validate()
}

// Validate reports whether the settings are self-consistent enough to
// build a Connection from.
func (s TransportSettings) Validate() error {
	if s.MaxDatagramSize < 1200 {
		return qerr.ErrInvalidOperation("conn: max datagram size below the RFC 9000 §14 floor of 1200")
	}
	if s.IdleTimeout <= 0 {
		return qerr.ErrInvalidOperation("conn: idle timeout must be positive")
	}
	return nil
}
