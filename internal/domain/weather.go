package domain

// WeatherColumns are the source and backup columns of a weather observation.
var WeatherColumns = []string{
	"ciudad", "pais", "temperatura", "sensacion_termica", "temp_min", "temp_max",
	"humedad", "presion", "descripcion", "icono", "nubosidad",
	"viento_velocidad", "viento_direccion", "visibilidad",
	"amanecer", "atardecer", "latitud", "longitud", "timestamp",
}

// CleanedWeatherColumns are the columns of the cleaned weather table.
var CleanedWeatherColumns = []string{
	"ciudad", "pais", "descripcion", "temperatura",
	"viento_clasificacion", "temperatura_clasificacion", "visibilidad_clasificacion",
	"timestamp",
}

// RawWeatherObservation is one persisted weather lookup. Sunrise and sunset
// are local clock strings (HH:MM:SS); Timestamp is the ISO-8601 save time.
type RawWeatherObservation struct {
	City        *string  `gorm:"column:ciudad" json:"ciudad"`
	Country     *string  `gorm:"column:pais" json:"pais"`
	Temperature *float64 `gorm:"column:temperatura" json:"temperatura"`
	FeelsLike   *float64 `gorm:"column:sensacion_termica" json:"sensacion_termica"`
	TempMin     *float64 `gorm:"column:temp_min" json:"temp_min"`
	TempMax     *float64 `gorm:"column:temp_max" json:"temp_max"`
	Humidity    *int64   `gorm:"column:humedad" json:"humedad"`
	Pressure    *int64   `gorm:"column:presion" json:"presion"`
	Description *string  `gorm:"column:descripcion" json:"descripcion"`
	Icon        *string  `gorm:"column:icono" json:"icono"`
	Cloudiness  *int64   `gorm:"column:nubosidad" json:"nubosidad"`
	WindSpeed   *float64 `gorm:"column:viento_velocidad" json:"viento_velocidad"`
	WindDeg     *int64   `gorm:"column:viento_direccion" json:"viento_direccion"`
	Visibility  *int64   `gorm:"column:visibilidad" json:"visibilidad"`
	Sunrise     *string  `gorm:"column:amanecer" json:"amanecer"`
	Sunset      *string  `gorm:"column:atardecer" json:"atardecer"`
	Latitude    *float64 `gorm:"column:latitud" json:"latitud"`
	Longitude   *float64 `gorm:"column:longitud" json:"longitud"`
	Timestamp   *string  `gorm:"column:timestamp" json:"timestamp"`
}

func (RawWeatherObservation) Columns() []string { return WeatherColumns }

func (w RawWeatherObservation) Values() []any {
	return []any{
		stringOrNil(w.City),
		stringOrNil(w.Country),
		floatOrNil(w.Temperature),
		floatOrNil(w.FeelsLike),
		floatOrNil(w.TempMin),
		floatOrNil(w.TempMax),
		intOrNil(w.Humidity),
		intOrNil(w.Pressure),
		stringOrNil(w.Description),
		stringOrNil(w.Icon),
		intOrNil(w.Cloudiness),
		floatOrNil(w.WindSpeed),
		intOrNil(w.WindDeg),
		intOrNil(w.Visibility),
		stringOrNil(w.Sunrise),
		stringOrNil(w.Sunset),
		floatOrNil(w.Latitude),
		floatOrNil(w.Longitude),
		stringOrNil(w.Timestamp),
	}
}

// CleanedWeatherObservation is a weather lookup reduced to its descriptive
// fields plus three classification labels.
type CleanedWeatherObservation struct {
	City                      string  `gorm:"column:ciudad" json:"ciudad"`
	Country                   string  `gorm:"column:pais" json:"pais"`
	Description               string  `gorm:"column:descripcion" json:"descripcion"`
	Temperature               float64 `gorm:"column:temperatura" json:"temperatura"`
	WindClassification        string  `gorm:"column:viento_clasificacion" json:"viento_clasificacion"`
	TemperatureClassification string  `gorm:"column:temperatura_clasificacion" json:"temperatura_clasificacion"`
	VisibilityClassification  string  `gorm:"column:visibilidad_clasificacion" json:"visibilidad_clasificacion"`
	Timestamp                 string  `gorm:"column:timestamp" json:"timestamp"`
}

func (CleanedWeatherObservation) Columns() []string { return CleanedWeatherColumns }

func (w CleanedWeatherObservation) Values() []any {
	return []any{
		w.City,
		w.Country,
		w.Description,
		w.Temperature,
		w.WindClassification,
		w.TemperatureClassification,
		w.VisibilityClassification,
		w.Timestamp,
	}
}
