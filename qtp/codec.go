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

package qtp

import (
	"github.com/nabbar/quicgo/qerr"
	"github.com/nabbar/quicgo/varint"
)

const (
	idOriginalDestinationConnectionID = 0x00
	idMaxIdleTimeout                  = 0x01
	idStatelessResetToken             = 0x02
	idMaxUDPPayloadSize               = 0x03
	idInitialMaxData                  = 0x04
	idInitialMaxStreamDataBidiLocal   = 0x05
	idInitialMaxStreamDataBidiRemote  = 0x06
	idInitialMaxStreamDataUni         = 0x07
	idInitialMaxStreamsBidi           = 0x08
	idInitialMaxStreamsUni            = 0x09
	idAckDelayExponent                = 0x0a
	idMaxAckDelay                     = 0x0b
	idDisableActiveMigration          = 0x0c
	idPreferredAddress                = 0x0d
	idActiveConnectionIDLimit         = 0x0e
	idInitialSourceConnectionID       = 0x0f
	idRetrySourceConnectionID         = 0x10
	idMaxDatagramFrameSize            = 0x20
	idMinAckDelay                     = 0x1ab2

	// This implementation's private-use range for the custom extensions.
	idStreamGroupsEnabled         = 0x4001
	idAckReceiveTimestampsEnabled = 0x4002
	idMaxReceiveTimestampsPerAck  = 0x4003
	idReceiveTimestampsExponent   = 0x4004
	idKnobFramesSupported         = 0x4005
	idExtendedAckFeatures         = 0x4006
	idReliableStreamReset         = 0x4007
	idCwndHintBytes               = 0x4008
	idClientDirectEncap           = 0x4009
)

// Encode appends the TLV-encoded transport parameter extension to dst.
func Encode(dst []byte, p Parameters) ([]byte, error) {
	var err error
	put := func(id uint64, val []byte) {
		if err != nil {
			return
		}
		dst, err = varint.Encode(dst, id)
		if err != nil {
			return
		}
		dst, err = varint.Encode(dst, uint64(len(val)))
		if err != nil {
			return
		}
		dst = append(dst, val...)
	}
	putVarint := func(id, v uint64) {
		enc, e := varint.Encode(nil, v)
		if e != nil {
			err = e
			return
		}
		put(id, enc)
	}
	putFlag := func(id uint64, set bool) {
		if set {
			put(id, nil)
		}
	}

	if len(p.OriginalDestinationConnectionID) > 0 {
		put(idOriginalDestinationConnectionID, p.OriginalDestinationConnectionID)
	}
	putVarint(idMaxIdleTimeout, p.MaxIdleTimeoutMs)
	if p.StatelessResetToken != nil {
		put(idStatelessResetToken, p.StatelessResetToken[:])
	}
	putVarint(idMaxUDPPayloadSize, p.MaxUDPPayloadSize)
	putVarint(idInitialMaxData, p.InitialMaxData)
	putVarint(idInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal)
	putVarint(idInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote)
	putVarint(idInitialMaxStreamDataUni, p.InitialMaxStreamDataUni)
	putVarint(idInitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	putVarint(idInitialMaxStreamsUni, p.InitialMaxStreamsUni)
	putVarint(idAckDelayExponent, p.AckDelayExponent)
	putVarint(idMaxAckDelay, p.MaxAckDelayMs)
	putFlag(idDisableActiveMigration, p.DisableActiveMigration)
	if p.PreferredAddress != nil {
		put(idPreferredAddress, encodePreferredAddress(p.PreferredAddress))
	}
	putVarint(idActiveConnectionIDLimit, p.ActiveConnectionIDLimit)
	put(idInitialSourceConnectionID, p.InitialSourceConnectionID)
	if len(p.RetrySourceConnectionID) > 0 {
		put(idRetrySourceConnectionID, p.RetrySourceConnectionID)
	}
	if p.MaxDatagramFrameSize > 0 {
		putVarint(idMaxDatagramFrameSize, p.MaxDatagramFrameSize)
	}
	if p.MinAckDelayUs > 0 {
		putVarint(idMinAckDelay, p.MinAckDelayUs)
	}

	putFlag(idStreamGroupsEnabled, p.StreamGroupsEnabled)
	putFlag(idAckReceiveTimestampsEnabled, p.AckReceiveTimestampsEnabled)
	if p.AckReceiveTimestampsEnabled {
		putVarint(idMaxReceiveTimestampsPerAck, p.MaxReceiveTimestampsPerAck)
		putVarint(idReceiveTimestampsExponent, p.ReceiveTimestampsExponent)
	}
	putFlag(idKnobFramesSupported, p.KnobFramesSupported)
	if p.ExtendedAckFeatures > 0 {
		putVarint(idExtendedAckFeatures, p.ExtendedAckFeatures)
	}
	putFlag(idReliableStreamReset, p.ReliableStreamReset)
	if p.CwndHintBytes > 0 {
		putVarint(idCwndHintBytes, p.CwndHintBytes)
	}
	putFlag(idClientDirectEncap, p.ClientDirectEncap)

	return dst, err
}

func encodePreferredAddress(pa *PreferredAddress) []byte {
	var b []byte
	b = append(b, pa.IPv4[:]...)
	b = append(b, byte(pa.IPv4Port>>8), byte(pa.IPv4Port))
	b = append(b, pa.IPv6[:]...)
	b = append(b, byte(pa.IPv6Port>>8), byte(pa.IPv6Port))
	b = append(b, byte(len(pa.ConnectionID)))
	b = append(b, pa.ConnectionID...)
	b = append(b, pa.StatelessResetToken[:]...)
	return b
}

// Decode parses a transport-parameter extension payload into Parameters.
func Decode(b []byte) (Parameters, error) {
	p := Parameters{}
	pos := 0

	for pos < len(b) {
		id, n, err := varint.Decode(b[pos:])
		if err != nil {
			return p, qerr.TransportParameterError("truncated parameter id", err)
		}
		pos += n

		length, n, err := varint.Decode(b[pos:])
		if err != nil {
			return p, qerr.TransportParameterError("truncated parameter length", err)
		}
		pos += n

		if pos+int(length) > len(b) {
			return p, qerr.TransportParameterError("truncated parameter value", nil)
		}
		val := b[pos : pos+int(length)]
		pos += int(length)

		if err := applyParam(&p, id, val); err != nil {
			return p, err
		}
	}
	return p, nil
}

func applyParam(p *Parameters, id uint64, val []byte) error {
	asVarint := func() (uint64, error) {
		v, _, err := varint.Decode(val)
		if err != nil {
			return 0, qerr.TransportParameterError("malformed varint parameter", err)
		}
		return v, nil
	}

	switch id {
	case idOriginalDestinationConnectionID:
		p.OriginalDestinationConnectionID = append([]byte{}, val...)
	case idMaxIdleTimeout:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.MaxIdleTimeoutMs = v
	case idStatelessResetToken:
		if len(val) != 16 {
			return qerr.TransportParameterError("stateless_reset_token must be 16 bytes", nil)
		}
		var tok [16]byte
		copy(tok[:], val)
		p.StatelessResetToken = &tok
	case idMaxUDPPayloadSize:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.MaxUDPPayloadSize = v
	case idInitialMaxData:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxData = v
	case idInitialMaxStreamDataBidiLocal:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataBidiLocal = v
	case idInitialMaxStreamDataBidiRemote:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataBidiRemote = v
	case idInitialMaxStreamDataUni:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataUni = v
	case idInitialMaxStreamsBidi:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxStreamsBidi = v
	case idInitialMaxStreamsUni:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxStreamsUni = v
	case idAckDelayExponent:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.AckDelayExponent = v
	case idMaxAckDelay:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.MaxAckDelayMs = v
	case idDisableActiveMigration:
		p.DisableActiveMigration = true
	case idPreferredAddress:
		pa, err := decodePreferredAddress(val)
		if err != nil {
			return err
		}
		p.PreferredAddress = pa
	case idActiveConnectionIDLimit:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.ActiveConnectionIDLimit = v
	case idInitialSourceConnectionID:
		p.InitialSourceConnectionID = append([]byte{}, val...)
	case idRetrySourceConnectionID:
		p.RetrySourceConnectionID = append([]byte{}, val...)
	case idMaxDatagramFrameSize:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.MaxDatagramFrameSize = v
	case idMinAckDelay:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.MinAckDelayUs = v
	case idStreamGroupsEnabled:
		p.StreamGroupsEnabled = true
	case idAckReceiveTimestampsEnabled:
		p.AckReceiveTimestampsEnabled = true
	case idMaxReceiveTimestampsPerAck:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.MaxReceiveTimestampsPerAck = v
	case idReceiveTimestampsExponent:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.ReceiveTimestampsExponent = v
	case idKnobFramesSupported:
		p.KnobFramesSupported = true
	case idExtendedAckFeatures:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.ExtendedAckFeatures = v
	case idReliableStreamReset:
		p.ReliableStreamReset = true
	case idCwndHintBytes:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.CwndHintBytes = v
	case idClientDirectEncap:
		p.ClientDirectEncap = true
	default:
		// Unknown parameters (including GREASE) are ignored per RFC 9000
		// §18.1.
	}
	return nil
}

func decodePreferredAddress(val []byte) (*PreferredAddress, error) {
	if len(val) < 4+2+16+2+1 {
		return nil, qerr.TransportParameterError("truncated preferred_address", nil)
	}
	pa := &PreferredAddress{}
	pos := 0
	copy(pa.IPv4[:], val[pos:pos+4])
	pos += 4
	pa.IPv4Port = uint16(val[pos])<<8 | uint16(val[pos+1])
	pos += 2
	copy(pa.IPv6[:], val[pos:pos+16])
	pos += 16
	pa.IPv6Port = uint16(val[pos])<<8 | uint16(val[pos+1])
	pos += 2
	cidLen := int(val[pos])
	pos++
	if pos+cidLen+16 > len(val) {
		return nil, qerr.TransportParameterError("truncated preferred_address connection id", nil)
	}
	pa.ConnectionID = append([]byte{}, val[pos:pos+cidLen]...)
	pos += cidLen
	copy(pa.StatelessResetToken[:], val[pos:pos+16])
	return pa, nil
}
