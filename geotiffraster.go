package gpxz

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/geotiff"
	"github.com/maypok86/otter/v2"
	"golang.org/x/image/tiff/lzw"
)

var errShortRead = errors.New("short read")

// A TileCoord is the coordinate of one internal tile of a raster.
type TileCoord struct {
	C int // Column.
	R int // Row.
}

// A pixel is a raster pixel coordinate.
type pixel struct {
	X int
	Y int
}

// A GeoTIFFRaster is a hires raster payload parsed in memory. It expects the
// format the hires-raster endpoint serves: a single-IFD tiled GeoTIFF with
// one float32 sample per pixel, uncompressed or LZW-compressed.
type GeoTIFFRaster struct {
	reader                    *bytes.Reader
	imageWidth                int
	imageLength               int
	tileWidth                 int
	tileLength                int
	tilesAcross               int
	tilesDown                 int
	tileOffsets               []uint32
	tileByteCounts            []uint32
	compression               int
	tileSampleCount           int
	tileByteCountUncompressed int
	tileCacheSizeBytes        int
	tileSamplesCache          *otter.Cache[TileCoord, []float32]
	noData                    float32
	hasNoData                 bool
	geoKeys                   *ParsedGeoKeys
	scaleX                    float64
	scaleY                    float64
	translateX                float64
	translateY                float64
}

// A GeoTIFFRasterOption sets an option on a GeoTIFFRaster.
type GeoTIFFRasterOption func(*GeoTIFFRaster)

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint16    `tiff:"field,tag=256"`
	ImageLength               uint16    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint16    `tiff:"field,tag=322"`
	TileLength                uint16    `tiff:"field,tag=323"`
	TileOffsets               []uint32  `tiff:"field,tag=324"`
	TileByteCounts            []uint32  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag        []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag         string    `tiff:"field,tag=34737"`
	GDALMetadata              string    `tiff:"field,tag=42112"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

const (
	compressionNone = 1
	compressionLZW  = 5
)

// NewGeoTIFFRaster parses data, typically the payload returned by
// [Client.HiresRaster].
func NewGeoTIFFRaster(data []byte, options ...GeoTIFFRasterOption) (*GeoTIFFRaster, error) {
	r := &GeoTIFFRaster{
		reader:             bytes.NewReader(data),
		tileCacheSizeBytes: 128 << 20, // 128MB.
	}
	for _, option := range options {
		option(r)
	}

	tiffTIFF, err := tiff.Parse(r.reader, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, err
	}

	if len(tiffTIFF.IFDs()) != 1 {
		return nil, fmt.Errorf("found %d IFDs, expected 1", len(tiffTIFF.IFDs()))
	}

	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, err
	}

	if ifd.BitsPerSample != 32 ||
		(ifd.Compression != compressionNone && ifd.Compression != compressionLZW) ||
		ifd.PhotometricInterpretation != 1 ||
		ifd.SamplesPerPixel != 1 ||
		(ifd.PlanarConfiguration != 0 && ifd.PlanarConfiguration != 1) ||
		(ifd.Predictor != 0 && ifd.Predictor != 1) ||
		ifd.SampleFormat != 3 ||
		ifd.TileWidth == 0 || ifd.TileLength == 0 ||
		len(ifd.ModelPixelScaleTag) != 3 || ifd.ModelPixelScaleTag[2] != 0 ||
		len(ifd.ModelTiepointTag) != 6 ||
		ifd.ModelTiepointTag[0] != 0 || ifd.ModelTiepointTag[1] != 0 ||
		ifd.ModelTiepointTag[2] != 0 || ifd.ModelTiepointTag[5] != 0 {
		return nil, errors.ErrUnsupported
	}

	r.imageWidth = int(ifd.ImageWidth)
	r.imageLength = int(ifd.ImageLength)
	r.tileWidth = int(ifd.TileWidth)
	r.tileLength = int(ifd.TileLength)
	r.compression = int(ifd.Compression)
	r.tilesAcross = (r.imageWidth + r.tileWidth - 1) / r.tileWidth
	r.tilesDown = (r.imageLength + r.tileLength - 1) / r.tileLength
	tilesPerImage := r.tilesAcross * r.tilesDown
	if len(ifd.TileByteCounts) != tilesPerImage || len(ifd.TileOffsets) != tilesPerImage {
		return nil, errors.New("incorrect number of tile byte counts or offsets")
	}
	r.tileOffsets = ifd.TileOffsets
	r.tileByteCounts = ifd.TileByteCounts
	r.tileSampleCount = r.tileWidth * r.tileLength
	r.tileByteCountUncompressed = r.tileSampleCount * int(ifd.BitsPerSample) / 8

	r.scaleX = ifd.ModelPixelScaleTag[0]
	r.scaleY = ifd.ModelPixelScaleTag[1]
	if r.scaleX <= 0 || r.scaleY <= 0 {
		return nil, errors.ErrUnsupported
	}
	r.translateX = ifd.ModelTiepointTag[3]
	r.translateY = ifd.ModelTiepointTag[4]

	// GDAL pads the nodata tag with spaces and a trailing NUL.
	if noDataString := strings.Trim(ifd.GDALNoData, " \x00"); noDataString != "" {
		noData, err := strconv.ParseFloat(noDataString, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid nodata value %q", ifd.GDALNoData)
		}
		r.noData = float32(noData)
		r.hasNoData = true
	}

	if len(ifd.GeoKeyDirectoryTag) > 0 {
		r.geoKeys, err = ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, []byte(ifd.GeoASCIIParamsTag))
		if err != nil {
			return nil, err
		}
	}

	tileCacheCount := max(r.tileCacheSizeBytes/r.tileByteCountUncompressed, 1)
	r.tileSamplesCache, err = otter.New(&otter.Options[TileCoord, []float32]{
		MaximumSize: tileCacheCount,
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

// WithTileCacheSize sets the approximate size of the decoded tile samples
// cache in bytes.
func WithTileCacheSize(tileCacheSizeBytes int) GeoTIFFRasterOption {
	return func(r *GeoTIFFRaster) {
		r.tileCacheSizeBytes = tileCacheSizeBytes
	}
}

// Scale returns r's pixel size in CRS units.
func (r *GeoTIFFRaster) Scale() (float64, float64) {
	return r.scaleX, r.scaleY
}

// Extent returns r's coverage in its own CRS.
func (r *GeoTIFFRaster) Extent() (left, bottom, right, top float64) {
	left = r.translateX
	top = r.translateY
	right = r.translateX + float64(r.imageWidth)*r.scaleX
	bottom = r.translateY - float64(r.imageLength)*r.scaleY
	return left, bottom, right, top
}

// GeoKeys returns r's parsed GeoKey directory, or nil if the raster carries
// none.
func (r *GeoTIFFRaster) GeoKeys() *ParsedGeoKeys {
	return r.geoKeys
}

// ProjectedEPSG returns the EPSG code of r's projected CRS.
func (r *GeoTIFFRaster) ProjectedEPSG() (int, bool) {
	if r.geoKeys == nil {
		return 0, false
	}
	return r.geoKeys.ProjectedEPSG()
}

// Sample returns the sample at coord, given in r's CRS. Missing samples are
// represented by NaN.
func (r *GeoTIFFRaster) Sample(ctx context.Context, coord []float64) (float64, error) {
	p := r.pixelAt(coord)
	tileCoord, ok := r.tileCoordAt(p)
	if !ok {
		return math.NaN(), nil
	}
	tileSamples, err := r.getTileSamplesCached(ctx, tileCoord)
	if err != nil {
		return 0, err
	}
	return r.tileSample(tileSamples, p), nil
}

// Samples returns the samples at coords, given in r's CRS. Missing samples
// are represented by NaNs. It is significantly faster than calling [Sample]
// for each coordinate as samples are grouped by tile.
func (r *GeoTIFFRaster) Samples(ctx context.Context, coords [][]float64) ([]float64, error) {
	samples := make([]float64, len(coords))

	// Group indexes by tile coord.
	pixels := make([]pixel, len(coords))
	indexesByTileCoord := make(map[TileCoord][]int)
	for index, coord := range coords {
		pixels[index] = r.pixelAt(coord)
		tileCoord, ok := r.tileCoordAt(pixels[index])
		if !ok {
			samples[index] = math.NaN()
			continue
		}
		indexesByTileCoord[tileCoord] = append(indexesByTileCoord[tileCoord], index)
	}

	// Populate samples one tile at a time.
	for tileCoord, indexes := range indexesByTileCoord {
		slices.Sort(indexes)
		tileSamples, err := r.getTileSamplesCached(ctx, tileCoord)
		if err != nil {
			return nil, err
		}
		for _, index := range indexes {
			samples[index] = r.tileSample(tileSamples, pixels[index])
		}
	}

	return samples, nil
}

// pixelAt returns the pixel containing coord.
func (r *GeoTIFFRaster) pixelAt(coord []float64) pixel {
	return pixel{
		X: int(math.Floor((coord[0] - r.translateX) / r.scaleX)),
		Y: int(math.Floor((r.translateY - coord[1]) / r.scaleY)),
	}
}

// tileCoordAt returns the tile coord containing p.
func (r *GeoTIFFRaster) tileCoordAt(p pixel) (TileCoord, bool) {
	if p.X < 0 || r.imageWidth <= p.X || p.Y < 0 || r.imageLength <= p.Y {
		return TileCoord{}, false
	}
	return TileCoord{
		C: p.X / r.tileWidth,
		R: p.Y / r.tileLength,
	}, true
}

// tileSample returns the sample from tileSamples at p.
func (r *GeoTIFFRaster) tileSample(tileSamples []float32, p pixel) float64 {
	sample := tileSamples[p.X%r.tileWidth+(p.Y%r.tileLength)*r.tileWidth]
	if r.hasNoData && sample == r.noData {
		return math.NaN()
	}
	return float64(sample)
}

// getTileData returns the raw tile data at tileCoord, decompressing it if
// needed.
func (r *GeoTIFFRaster) getTileData(tileCoord TileCoord) ([]byte, error) {
	tileIndex := tileCoord.C + r.tilesAcross*tileCoord.R
	tileByteCount := int(r.tileByteCounts[tileIndex])
	tileOffset := int64(r.tileOffsets[tileIndex])
	compressedData := make([]byte, tileByteCount)
	switch n, err := r.reader.ReadAt(compressedData, tileOffset); {
	case err != nil:
		return nil, err
	case n != tileByteCount:
		return nil, errShortRead
	}

	if r.compression == compressionNone {
		if tileByteCount != r.tileByteCountUncompressed {
			return nil, errShortRead
		}
		return compressedData, nil
	}

	tileData := make([]byte, r.tileByteCountUncompressed)
	lzwReader := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
	for bytesRead := 0; bytesRead < r.tileByteCountUncompressed; {
		n, err := lzwReader.Read(tileData[bytesRead:])
		if err != nil {
			return nil, err
		}
		bytesRead += n
	}
	return tileData, nil
}

// getTileSamples returns the decoded samples of the tile at tileCoord.
func (r *GeoTIFFRaster) getTileSamples(ctx context.Context, tileCoord TileCoord) ([]float32, error) {
	tileData, err := r.getTileData(tileCoord)
	if err != nil {
		return nil, err
	}
	rasterTileLoads.Inc()
	tileSamples := make([]float32, r.tileSampleCount)
	for i := range r.tileSampleCount {
		b := binary.LittleEndian.Uint32(tileData[i*4 : (i+1)*4])
		tileSamples[i] = math.Float32frombits(b)
	}
	return tileSamples, nil
}

// getTileSamplesCached returns the decoded samples of the tile at tileCoord,
// using r's cache.
func (r *GeoTIFFRaster) getTileSamplesCached(ctx context.Context, tileCoord TileCoord) ([]float32, error) {
	return r.tileSamplesCache.Get(ctx, tileCoord, otter.LoaderFunc[TileCoord, []float32](r.getTileSamples))
}
