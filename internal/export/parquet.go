package export

import (
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/breatheroute/airdash/internal/airquality"
)

// SeriesRow is the Parquet schema of one hourly trend point.
type SeriesRow struct {
	Location   string  `parquet:"name=location,type=BYTE_ARRAY,convertedtype=UTF8"`
	Latitude   float64 `parquet:"name=latitude,type=DOUBLE"`
	Longitude  float64 `parquet:"name=longitude,type=DOUBLE"`
	Hour       string  `parquet:"name=hour,type=BYTE_ARRAY,convertedtype=UTF8"`
	PM25       float64 `parquet:"name=pm2_5,type=DOUBLE"`
	Synthetic  bool    `parquet:"name=synthetic,type=BOOLEAN"`
	ExportedAt int64   `parquet:"name=exported_at,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
}

// WriteSeriesParquet writes the hourly trend for a reading as a Snappy
// compressed Parquet file.
func WriteSeriesParquet(w io.Writer, reading airquality.Reading, series airquality.HourlySeries) error {
	if series.Len() == 0 {
		return ErrEmptyExport
	}

	pw, err := writer.NewParquetWriterFromWriter(w, new(SeriesRow), 1)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	exportedAt := reading.Timestamp.UnixMilli()
	for _, p := range series.Points {
		row := SeriesRow{
			Location:   reading.LocationName,
			Latitude:   reading.Coordinates.Latitude,
			Longitude:  reading.Coordinates.Longitude,
			Hour:       p.Time,
			PM25:       p.Value,
			Synthetic:  series.Synthetic,
			ExportedAt: exportedAt,
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	return nil
}
