package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/desertthunder/posterctl/internal/shared"
)

type (
	Language        string
	Orientation     string
	PosterSize      string
	ProductPosition string
	AssetFont       string
	AssetImage      string
)

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"

	OrientationHorizontal Orientation = "horizontal"
	OrientationVertical   Orientation = "vertical"
	OrientationSquare     Orientation = "square"

	SizeStandard PosterSize = "standard"
	SizeLarge    PosterSize = "large"
	SizeSocial   PosterSize = "social"
	SizeBanner   PosterSize = "banner"
	SizePoster   PosterSize = "poster"
	SizeCustom   PosterSize = "custom"

	PositionLeft   ProductPosition = "left"
	PositionRight  ProductPosition = "right"
	PositionTop    ProductPosition = "top"
	PositionBottom ProductPosition = "bottom"
	PositionCenter ProductPosition = "center"

	FontEffraRegular AssetFont = "effra_regular"
	FontEffraBold    AssetFont = "effra_bold"
	FontEffraThin    AssetFont = "effra_thin"

	ImageLogoBottomLeft      AssetImage = "logo_bottom_left"
	ImageLogoTopLeft         AssetImage = "logo_top_left"
	ImageLogoTopRight        AssetImage = "logo_top_right"
	ImageCTAPatternIcon      AssetImage = "cta_pattern_icon"
	ImageTextBackgroundShape AssetImage = "text_background_shape"
)

// AssetConfig selects brand fonts and overlay images. It is sent to the API as a JSON string.
type AssetConfig struct {
	Fonts  []AssetFont  `json:"fonts" toml:"fonts" validate:"unique,dive,oneof=effra_regular effra_bold effra_thin"`
	Images []AssetImage `json:"images" toml:"images" validate:"unique,dive,oneof=logo_bottom_left logo_top_left logo_top_right cta_pattern_icon text_background_shape"`
}

// JSON encodes the config the way the upload endpoint expects. nil lists encode as [].
func (a AssetConfig) JSON() (string, error) {
	out := struct {
		Fonts  []AssetFont  `json:"fonts"`
		Images []AssetImage `json:"images"`
	}{Fonts: a.Fonts, Images: a.Images}
	if out.Fonts == nil {
		out.Fonts = []AssetFont{}
	}
	if out.Images == nil {
		out.Images = []AssetImage{}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode asset config: %w", err)
	}
	return string(b), nil
}

// PosterSettings is the closed set of generation options accepted on upload.
type PosterSettings struct {
	Language        Language        `json:"language,omitempty" toml:"language" validate:"omitempty,oneof=en ar"`
	Orientation     Orientation     `json:"orientation,omitempty" toml:"orientation" validate:"omitempty,oneof=horizontal vertical square"`
	Size            PosterSize      `json:"size,omitempty" toml:"size" validate:"omitempty,oneof=standard large social banner poster custom"`
	ProductPosition ProductPosition `json:"productPosition,omitempty" toml:"product_position" validate:"omitempty,oneof=left right top bottom center"`
	BackgroundColor string          `json:"backgroundColor,omitempty" toml:"background_color" validate:"omitempty,hexcolor"`
	CustomWidth     int             `json:"customWidth,omitempty" toml:"custom_width" validate:"required_if=Size custom,gte=0,lte=10000"`
	CustomHeight    int             `json:"customHeight,omitempty" toml:"custom_height" validate:"required_if=Size custom,gte=0,lte=10000"`
	MinimalPadding  bool            `json:"minimalPadding" toml:"minimal_padding"`
	PaddingRatio    *float64        `json:"paddingRatio,omitempty" toml:"padding_ratio" validate:"omitempty,gte=0,lte=1"`
	UseCase         string          `json:"useCase,omitempty" toml:"use_case" validate:"omitempty,max=200"`
	Assets          *AssetConfig    `json:"-" toml:"assets" validate:"omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultPosterSettings returns the settings used when nothing else is specified.
func DefaultPosterSettings() PosterSettings {
	return PosterSettings{
		Language:       LanguageEnglish,
		Orientation:    OrientationVertical,
		Size:           SizeStandard,
		MinimalPadding: true,
	}
}

// PosterSettingsFromDefaults builds settings from the [poster] section of the config file.
func PosterSettingsFromDefaults(d shared.PosterDefaults) PosterSettings {
	s := DefaultPosterSettings()
	if d.Language != "" {
		s.Language = Language(d.Language)
	}
	if d.Orientation != "" {
		s.Orientation = Orientation(d.Orientation)
	}
	if d.Size != "" {
		s.Size = PosterSize(d.Size)
	}
	s.ProductPosition = ProductPosition(d.ProductPosition)
	s.BackgroundColor = d.BackgroundColor
	s.MinimalPadding = d.MinimalPadding
	s.UseCase = d.UseCase
	return s
}

// Validate checks every field against its recognized options.
func (s PosterSettings) Validate() error {
	return validationError(validate.Struct(s))
}

// validationError flattens validator failures into one [shared.ErrInvalidInput].
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return fmt.Errorf("%w: %s", shared.ErrInvalidInput, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
}

// Clone returns a deep copy of s.
func (s *PosterSettings) Clone() *PosterSettings {
	if s == nil {
		return nil
	}
	c := *s
	if s.PaddingRatio != nil {
		r := *s.PaddingRatio
		c.PaddingRatio = &r
	}
	if s.Assets != nil {
		c.Assets = &AssetConfig{
			Fonts:  slices.Clone(s.Assets.Fonts),
			Images: slices.Clone(s.Assets.Images),
		}
	}
	return &c
}

// LoadPosterSettings reads settings from a TOML file on top of base.
//
// Unknown keys are an error rather than silently ignored.
func LoadPosterSettings(path string, base PosterSettings) (PosterSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PosterSettings{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	return ParsePosterSettings(string(data), base)
}

// ParsePosterSettings decodes TOML settings on top of base and validates the result.
func ParsePosterSettings(data string, base PosterSettings) (PosterSettings, error) {
	s := *base.Clone()
	meta, err := toml.Decode(data, &s)
	if err != nil {
		return PosterSettings{}, fmt.Errorf("failed to parse settings: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return PosterSettings{}, fmt.Errorf("%w: %s", shared.ErrUnknownSetting, strings.Join(keys, ", "))
	}

	if err := s.Validate(); err != nil {
		return PosterSettings{}, err
	}
	return s, nil
}
