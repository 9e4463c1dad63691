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

import "github.com/nabbar/quicgo/qerr"

// Validate checks the constraints RFC 9000 §18.2 places on individual
// parameter values, independent of any peer cross-check.
func Validate(p Parameters) error {
	if p.AckDelayExponent > 20 {
		return qerr.TransportParameterError("ack_delay_exponent exceeds 20", nil)
	}
	if p.MaxAckDelayMs >= 1<<14 {
		return qerr.TransportParameterError("max_ack_delay must be less than 2^14 ms", nil)
	}
	if p.MaxDatagramFrameSize != 0 && p.MaxDatagramFrameSize < kMaxDatagramPacketOverhead+1 {
		return qerr.TransportParameterError("max_datagram_frame_size must be 0 or exceed the minimum datagram overhead", nil)
	}
	return nil
}

// ValidateZeroRTTConsistency checks that the transport parameters a server
// re-offers after accepting 0-RTT have not shrunk below the values
// remembered from the session that granted 0-RTT, per RFC 9001 §4.5.
func ValidateZeroRTTConsistency(remembered, current Parameters) error {
	if current.InitialMaxData < remembered.InitialMaxData {
		return qerr.TransportParameterError("initial_max_data decreased across 0-RTT", nil)
	}
	if current.InitialMaxStreamDataBidiLocal < remembered.InitialMaxStreamDataBidiLocal {
		return qerr.TransportParameterError("initial_max_stream_data_bidi_local decreased across 0-RTT", nil)
	}
	if current.InitialMaxStreamDataBidiRemote < remembered.InitialMaxStreamDataBidiRemote {
		return qerr.TransportParameterError("initial_max_stream_data_bidi_remote decreased across 0-RTT", nil)
	}
	if current.InitialMaxStreamDataUni < remembered.InitialMaxStreamDataUni {
		return qerr.TransportParameterError("initial_max_stream_data_uni decreased across 0-RTT", nil)
	}
	if current.InitialMaxStreamsBidi < remembered.InitialMaxStreamsBidi {
		return qerr.TransportParameterError("initial_max_streams_bidi decreased across 0-RTT", nil)
	}
	if current.InitialMaxStreamsUni < remembered.InitialMaxStreamsUni {
		return qerr.TransportParameterError("initial_max_streams_uni decreased across 0-RTT", nil)
	}
	if remembered.ReliableStreamReset && !current.ReliableStreamReset {
		return qerr.TransportParameterError("reliable_stream_reset withdrawn across 0-RTT", nil)
	}
	return nil
}
