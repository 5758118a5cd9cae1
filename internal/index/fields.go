package index

// Payload field names as they appear in the weather archive's DarkSky-era
// JSON documents (§6, Weather archive payload) and in model.Record.Fields.
const (
	FieldTemperatureHigh   = "temperatureHigh"
	FieldTemperatureLow    = "temperatureLow"
	FieldHumidity          = "humidity"
	FieldDewPoint          = "dewPoint"
	FieldWindSpeed         = "windSpeed"
	FieldWindBearing       = "windBearing"
	FieldWindGust          = "windGust"
	FieldPressure          = "pressure"
	FieldUvIndex           = "uvIndex"
	FieldCloudCover        = "cloudCover"
	FieldVisibility        = "visibility"
	FieldSunriseTime       = "sunriseTime"
	FieldSunsetTime        = "sunsetTime"
	FieldMoonPhase         = "moonPhase"
	FieldSummary           = "summary"
	FieldIcon              = "icon"
	FieldPrecipType        = "precipType"
	FieldPrecipIntensity   = "precipIntensity"
	FieldPrecipProbability = "precipProbability"
)

func f64(fields map[string]interface{}, key string) *float64 {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int64:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	}
	return nil
}

func i64(fields map[string]interface{}, key string) *int64 {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case int64:
		return &n
	case float64:
		i := int64(n)
		return &i
	}
	return nil
}

func str(fields map[string]interface{}, key string) *string {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

// FieldsToHistoryRow flattens a Record's typed payload fields into a
// HistoryRow for Normalized-deployment storage. Missing fields encode as
// nil columns, matching §6's "missing fields encode as JSON null and
// surface as absent in the Record."
func FieldsToHistoryRow(mid int64, fields map[string]interface{}) HistoryRow {
	return HistoryRow{
		MID:               mid,
		TemperatureHigh:   f64(fields, FieldTemperatureHigh),
		TemperatureLow:    f64(fields, FieldTemperatureLow),
		Humidity:          f64(fields, FieldHumidity),
		DewPoint:          f64(fields, FieldDewPoint),
		WindSpeed:         f64(fields, FieldWindSpeed),
		WindBearing:       f64(fields, FieldWindBearing),
		WindGust:          f64(fields, FieldWindGust),
		Pressure:          f64(fields, FieldPressure),
		UvIndex:           f64(fields, FieldUvIndex),
		CloudCover:        f64(fields, FieldCloudCover),
		Visibility:        f64(fields, FieldVisibility),
		SunriseTime:       i64(fields, FieldSunriseTime),
		SunsetTime:        i64(fields, FieldSunsetTime),
		MoonPhase:         f64(fields, FieldMoonPhase),
		Summary:           str(fields, FieldSummary),
		Icon:              str(fields, FieldIcon),
		PrecipType:        str(fields, FieldPrecipType),
		PrecipIntensity:   f64(fields, FieldPrecipIntensity),
		PrecipProbability: f64(fields, FieldPrecipProbability),
	}
}

// HistoryRowToFields reverses FieldsToHistoryRow for query-side
// reconstruction of a Record.
func HistoryRowToFields(row HistoryRow) map[string]interface{} {
	fields := map[string]interface{}{}
	put := func(key string, v interface{}) {
		fields[key] = v
	}
	if row.TemperatureHigh != nil {
		put(FieldTemperatureHigh, *row.TemperatureHigh)
	}
	if row.TemperatureLow != nil {
		put(FieldTemperatureLow, *row.TemperatureLow)
	}
	if row.Humidity != nil {
		put(FieldHumidity, *row.Humidity)
	}
	if row.DewPoint != nil {
		put(FieldDewPoint, *row.DewPoint)
	}
	if row.WindSpeed != nil {
		put(FieldWindSpeed, *row.WindSpeed)
	}
	if row.WindBearing != nil {
		put(FieldWindBearing, *row.WindBearing)
	}
	if row.WindGust != nil {
		put(FieldWindGust, *row.WindGust)
	}
	if row.Pressure != nil {
		put(FieldPressure, *row.Pressure)
	}
	if row.UvIndex != nil {
		put(FieldUvIndex, *row.UvIndex)
	}
	if row.CloudCover != nil {
		put(FieldCloudCover, *row.CloudCover)
	}
	if row.Visibility != nil {
		put(FieldVisibility, *row.Visibility)
	}
	if row.SunriseTime != nil {
		put(FieldSunriseTime, *row.SunriseTime)
	}
	if row.SunsetTime != nil {
		put(FieldSunsetTime, *row.SunsetTime)
	}
	if row.MoonPhase != nil {
		put(FieldMoonPhase, *row.MoonPhase)
	}
	if row.Summary != nil {
		put(FieldSummary, *row.Summary)
	}
	if row.Icon != nil {
		put(FieldIcon, *row.Icon)
	}
	if row.PrecipType != nil {
		put(FieldPrecipType, *row.PrecipType)
	}
	if row.PrecipIntensity != nil {
		put(FieldPrecipIntensity, *row.PrecipIntensity)
	}
	if row.PrecipProbability != nil {
		put(FieldPrecipProbability, *row.PrecipProbability)
	}
	return fields
}
