// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sort"
)

// Rational is a numerator/denominator pair.
type Rational [2]uint32

// GPSFields are the four GPS tags read by the metadata decoder.
type GPSFields struct {
	LatitudeRef  string
	Latitude     [3]Rational
	LongitudeRef string
	Longitude    [3]Rational
}

// ExifFields describe the tags written by ExifTIFF. Zero values are omitted.
type ExifFields struct {
	Make             string
	Model            string
	DateTime         string
	DateTimeOriginal string
	ExposureTime     Rational
	FNumber          Rational
	FocalLength      Rational
	ApertureValue    Rational
	ISO              uint16
	GPS              *GPSFields
}

const (
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

var le = binary.LittleEndian

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(b)), data: b}
}

func shortEntry(tag uint16, v uint16) ifdEntry {
	b := make([]byte, 2)
	le.PutUint16(b, v)
	return ifdEntry{tag: tag, typ: typeShort, count: 1, data: b}
}

func longEntry(tag uint16, v uint32) ifdEntry {
	b := make([]byte, 4)
	le.PutUint32(b, v)
	return ifdEntry{tag: tag, typ: typeLong, count: 1, data: b}
}

func rationalEntry(tag uint16, values ...Rational) ifdEntry {
	b := make([]byte, 0, 8*len(values))
	for _, v := range values {
		b = le.AppendUint32(b, v[0])
		b = le.AppendUint32(b, v[1])
	}
	return ifdEntry{tag: tag, typ: typeRational, count: uint32(len(values)), data: b}
}

func ifdSize(entries []ifdEntry) uint32 {
	return uint32(2 + 12*len(entries) + 4)
}

// ExifTIFF encodes f as a little-endian TIFF stream holding IFD0, an Exif
// sub-IFD and, when f.GPS is set, a GPS sub-IFD.
func ExifTIFF(f ExifFields) []byte {
	var ifd0, exifIFD, gpsIFD []ifdEntry

	if f.Make != "" {
		ifd0 = append(ifd0, asciiEntry(0x010F, f.Make))
	}
	if f.Model != "" {
		ifd0 = append(ifd0, asciiEntry(0x0110, f.Model))
	}
	if f.DateTime != "" {
		ifd0 = append(ifd0, asciiEntry(0x0132, f.DateTime))
	}

	if f.ExposureTime != (Rational{}) {
		exifIFD = append(exifIFD, rationalEntry(0x829A, f.ExposureTime))
	}
	if f.FNumber != (Rational{}) {
		exifIFD = append(exifIFD, rationalEntry(0x829D, f.FNumber))
	}
	if f.ISO != 0 {
		exifIFD = append(exifIFD, shortEntry(0x8827, f.ISO))
	}
	if f.DateTimeOriginal != "" {
		exifIFD = append(exifIFD, asciiEntry(0x9003, f.DateTimeOriginal))
	}
	if f.ApertureValue != (Rational{}) {
		exifIFD = append(exifIFD, rationalEntry(0x9202, f.ApertureValue))
	}
	if f.FocalLength != (Rational{}) {
		exifIFD = append(exifIFD, rationalEntry(0x920A, f.FocalLength))
	}

	if f.GPS != nil {
		if f.GPS.LatitudeRef != "" {
			gpsIFD = append(gpsIFD, asciiEntry(0x0001, f.GPS.LatitudeRef))
		}
		if f.GPS.Latitude != ([3]Rational{}) {
			gpsIFD = append(gpsIFD, rationalEntry(0x0002, f.GPS.Latitude[:]...))
		}
		if f.GPS.LongitudeRef != "" {
			gpsIFD = append(gpsIFD, asciiEntry(0x0003, f.GPS.LongitudeRef))
		}
		if f.GPS.Longitude != ([3]Rational{}) {
			gpsIFD = append(gpsIFD, rationalEntry(0x0004, f.GPS.Longitude[:]...))
		}
	}

	// Pointer entries are added first so that every IFD size is final before
	// offsets are computed.
	ifd0 = append(ifd0, longEntry(0x8769, 0))
	if len(gpsIFD) > 0 {
		ifd0 = append(ifd0, longEntry(0x8825, 0))
	}

	ifds := [][]ifdEntry{ifd0, exifIFD}
	if len(gpsIFD) > 0 {
		ifds = append(ifds, gpsIFD)
	}
	offsets := make([]uint32, len(ifds))
	next := uint32(8)
	for i, entries := range ifds {
		offsets[i] = next
		next += ifdSize(entries)
	}
	for i := range ifd0 {
		switch ifd0[i].tag {
		case 0x8769:
			le.PutUint32(ifd0[i].data, offsets[1])
		case 0x8825:
			le.PutUint32(ifd0[i].data, offsets[2])
		}
	}

	var out, data bytes.Buffer
	out.WriteString("II")
	out.Write(le.AppendUint16(nil, 42))
	out.Write(le.AppendUint32(nil, 8))

	dataStart := next
	for _, entries := range ifds {
		sort.Slice(entries, func(a, b int) bool { return entries[a].tag < entries[b].tag })
		out.Write(le.AppendUint16(nil, uint16(len(entries))))
		for _, e := range entries {
			out.Write(le.AppendUint16(nil, e.tag))
			out.Write(le.AppendUint16(nil, e.typ))
			out.Write(le.AppendUint32(nil, e.count))
			if len(e.data) <= 4 {
				value := make([]byte, 4)
				copy(value, e.data)
				out.Write(value)
				continue
			}
			out.Write(le.AppendUint32(nil, dataStart+uint32(data.Len())))
			data.Write(e.data)
			if data.Len()%2 == 1 {
				data.WriteByte(0)
			}
		}
		out.Write(le.AppendUint32(nil, 0))
	}
	out.Write(data.Bytes())
	return out.Bytes()
}

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// JPEGBytes encodes a small solid JPEG. When tiffExif is non-empty it is
// embedded as an APP1 Exif segment right after the SOI marker.
func JPEGBytes(tiffExif []byte) ([]byte, error) {
	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, SolidImage(16, 16, color.RGBA{R: 200, G: 120, B: 40, A: 255}), nil); err != nil {
		return nil, err
	}
	if len(tiffExif) == 0 {
		return encoded.Bytes(), nil
	}
	raw := encoded.Bytes()
	payload := append([]byte("Exif\x00\x00"), tiffExif...)

	var out bytes.Buffer
	out.Write(raw[:2])
	out.Write([]byte{0xFF, 0xE1})
	out.Write(binary.BigEndian.AppendUint16(nil, uint16(len(payload)+2)))
	out.Write(payload)
	out.Write(raw[2:])
	return out.Bytes(), nil
}

// WriteJPEG writes JPEGBytes(tiffExif) to path.
func WriteJPEG(path string, tiffExif []byte) error {
	b, err := JPEGBytes(tiffExif)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
