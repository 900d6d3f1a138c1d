package utils

import "testing"

func TestScaleDimensions(t *testing.T) {
	tests := []struct {
		srcW, srcH, tw, th int
		wantW, wantH       int
	}{
		{800, 600, 400, 0, 400, 300},
		{800, 600, 0, 300, 400, 300},
		{800, 600, 0, 0, 800, 600},
		{800, 600, 100, 100, 100, 100},
	}
	for _, tt := range tests {
		w, h := ScaleDimensions(tt.srcW, tt.srcH, tt.tw, tt.th)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("ScaleDimensions(%d,%d,%d,%d) = %dx%d, want %dx%d",
				tt.srcW, tt.srcH, tt.tw, tt.th, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestScaleToFloor(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		fw, fh       int
		wantW, wantH int
	}{
		{"square landscape floor", 100, 100, 1440, 900, 1440, 1440},
		{"wide", 1000, 500, 1440, 900, 1800, 900},
		{"portrait", 600, 1000, 900, 1440, 900, 1500},
		{"already large", 2000, 1000, 1440, 900, 2000, 1000},
		{"one axis short", 2000, 800, 1440, 900, 2250, 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ScaleToFloor(tt.w, tt.h, tt.fw, tt.fh)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, mw, mh int
		wantW, wantH int
	}{
		{3000, 2000, 2500, 2500, 2500, 1667},
		{2000, 3000, 2500, 2500, 1667, 2500},
		{1440, 1440, 2500, 2500, 1440, 1440},
		{10000, 10, 2500, 2500, 2500, 3},
		{5000, 1, 2500, 2500, 2500, 1},
	}
	for _, tt := range tests {
		w, h := FitWithin(tt.w, tt.h, tt.mw, tt.mh)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("FitWithin(%d,%d) = %dx%d, want %dx%d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
		if w > tt.mw || h > tt.mh {
			t.Errorf("FitWithin(%d,%d) escaped the box: %dx%d", tt.w, tt.h, w, h)
		}
	}
}

func TestThumbnailDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 2500, 1667, 400, 267},
		{"square", 1440, 1440, 400, 400},
		{"portrait", 1667, 2500, 267, 400},
		{"panorama hits min", 2500, 625, 800, 200},
		{"tall strip hits min", 500, 2500, 200, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ThumbnailDimensions(tt.w, tt.h, 400, 200)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
			if min(w, h) < 200 {
				t.Errorf("short side %d below minimum", min(w, h))
			}
		})
	}
}

func TestThumbnailDimensions_Bounded(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"strip stays at source size", 2500, 5, 2500, 5},
		{"tall strip stays at source size", 4, 1800, 4, 1800},
		{"small source keeps fit upscale", 100, 20, 400, 80},
		{"webp edge limit", 20000, 10, MaxWebPDimension, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ThumbnailDimensions(tt.w, tt.h, 400, 200)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
			if w > MaxWebPDimension || h > MaxWebPDimension {
				t.Errorf("%dx%d exceeds the WebP limit", w, h)
			}
		})
	}
}

func TestIsLandscape(t *testing.T) {
	if !IsLandscape(10, 10) {
		t.Error("square should be landscape")
	}
	if IsLandscape(9, 10) {
		t.Error("9x10 should be portrait")
	}
}
