package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	appcfg "github.com/jo-hoe/mbtisong/internal/config"
	"github.com/jo-hoe/mbtisong/internal/llm"
	"github.com/jo-hoe/mbtisong/internal/lyrics"
	"github.com/jo-hoe/mbtisong/internal/musicgen"
	"github.com/jo-hoe/mbtisong/internal/processor"
	"github.com/jo-hoe/mbtisong/internal/prompt"
)

var genFlags struct {
	mbti       string
	keywords   []string
	note       string
	joy        int
	energy     int
	vocal      string
	title      string
	lyricsOnly bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write lyrics and generate one song, printing the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generate(cmd)
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genFlags.mbti, "mbti", "", "MBTI category, e.g. INFJ")
	f.StringSliceVar(&genFlags.keywords, "keywords", nil, "Comma separated keywords")
	f.StringVar(&genFlags.note, "note", "", "Today's mood in one line")
	f.IntVar(&genFlags.joy, "joy", 50, "Joy 0..100")
	f.IntVar(&genFlags.energy, "energy", 50, "Energy 0..100")
	f.StringVar(&genFlags.vocal, "vocal", "", "Preferred vocal: male|female")
	f.StringVar(&genFlags.title, "title", "", "Title hint")
	f.BoolVar(&genFlags.lyricsOnly, "lyrics-only", false, "Stop after writing lyrics")
	_ = generateCmd.MarkFlagRequired("mbti")
}

type generateOutput struct {
	Title  string                `json:"title"`
	Lyrics string                `json:"lyrics"`
	Source llm.Source            `json:"source"`
	Asset  *musicgen.AssetResult `json:"asset,omitempty"`
	Error  string                `json:"error,omitempty"`
	Kind   string                `json:"error_kind,omitempty"`
}

func generate(cmd *cobra.Command) error {
	cfg, err := appcfg.Load(configPath)
	if err != nil {
		return err
	}
	// stdout carries only the JSON result
	logger := newLogger(cmd.ErrOrStderr(), cfg.Server.LogLevel)
	if genFlags.joy < 0 || genFlags.joy > 100 || genFlags.energy < 0 || genFlags.energy > 100 {
		return fmt.Errorf("joy and energy must be within 0..100")
	}

	writer, err := newWriter(cfg.Lyrics, logger)
	if err != nil {
		return err
	}
	in := prompt.Input{
		Category: strings.ToUpper(strings.TrimSpace(genFlags.mbti)),
		Keywords: genFlags.keywords,
		Note:     genFlags.note,
		Joy:      genFlags.joy,
		Energy:   genFlags.energy,
	}
	ctx := cmd.Context()
	res := llm.Write(ctx, writer, in, logger)
	song := musicgen.Song{
		Lyrics:    res.Text,
		Category:  in.Category,
		TitleHint: genFlags.title,
		Vocal:     prompt.ParseVocal(genFlags.vocal),
		Keywords:  in.Keywords,
		Joy:       in.Joy,
		Energy:    in.Energy,
	}
	_, body := lyrics.Extract(res.Text)
	out := generateOutput{Title: musicgen.Title(song), Lyrics: body, Source: res.Source}

	var genErr error
	if !genFlags.lyricsOnly {
		asset, err := newMusicClient(cfg.Music, logger, nil).Generate(ctx, song)
		if err != nil {
			genErr = err
			out.Error = err.Error()
			out.Kind = processor.ErrorKind(err)
		} else {
			out.Asset = &asset
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return genErr
}
