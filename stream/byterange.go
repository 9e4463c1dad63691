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

package stream

// byteRange is a half-open [start, end) span of stream-relative byte
// offsets, used to track a send stream's acked-intervals and loss buffer
// as sorted, non-overlapping, increasing sets.
type byteRange struct {
	start, end uint64
}

// rangeInsert merges [start, end) into a sorted, non-overlapping list of
// ranges, coalescing it with any range it overlaps or abuts.
func rangeInsert(ranges []byteRange, start, end uint64) []byteRange {
	if start >= end {
		return ranges
	}

	i := 0
	for i < len(ranges) && ranges[i].end < start {
		i++
	}
	j := i
	for j < len(ranges) && ranges[j].start <= end {
		if ranges[j].start < start {
			start = ranges[j].start
		}
		if ranges[j].end > end {
			end = ranges[j].end
		}
		j++
	}

	merged := make([]byteRange, 0, len(ranges)-(j-i)+1)
	merged = append(merged, ranges[:i]...)
	merged = append(merged, byteRange{start, end})
	merged = append(merged, ranges[j:]...)
	return merged
}

// rangeSubtract removes [start, end) from a sorted, non-overlapping list of
// ranges, splitting any range it only partially overlaps.
func rangeSubtract(ranges []byteRange, start, end uint64) []byteRange {
	if start >= end || len(ranges) == 0 {
		return ranges
	}

	out := make([]byteRange, 0, len(ranges))
	for _, r := range ranges {
		if r.end <= start || r.start >= end {
			out = append(out, r)
			continue
		}
		if r.start < start {
			out = append(out, byteRange{r.start, start})
		}
		if r.end > end {
			out = append(out, byteRange{end, r.end})
		}
	}
	return out
}

// rangeGaps returns the sub-intervals of [start, end) not already covered
// by the sorted, non-overlapping ranges.
func rangeGaps(ranges []byteRange, start, end uint64) []byteRange {
	var gaps []byteRange
	cur := start
	for _, r := range ranges {
		if r.end <= cur {
			continue
		}
		if r.start >= end {
			break
		}
		if r.start > cur {
			gaps = append(gaps, byteRange{cur, r.start})
		}
		if r.end > cur {
			cur = r.end
		}
	}
	if cur < end {
		gaps = append(gaps, byteRange{cur, end})
	}
	return gaps
}

// rangeCovers reports whether [start, end) is entirely covered by a single
// range in the sorted, non-overlapping set, which merging guarantees
// whenever the coverage is actually contiguous.
func rangeCovers(ranges []byteRange, start, end uint64) bool {
	for _, r := range ranges {
		if r.start <= start && r.end >= end {
			return true
		}
	}
	return false
}

// rangeClip drops or truncates every range at or beyond limit, used when a
// RESET_STREAM without a reliable prefix abandons everything from that
// offset onward.
func rangeClip(ranges []byteRange, limit uint64) []byteRange {
	out := ranges[:0:0]
	for _, r := range ranges {
		if r.start >= limit {
			continue
		}
		if r.end > limit {
			r.end = limit
		}
		out = append(out, r)
	}
	return out
}
