package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage"
)

// seedBook is the JSON shape accepted by the seed command.
type seedBook struct {
	ISBN        string `json:"isbn"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Tags        string `json:"tags"`
	Description string `json:"description"`
}

var sampleBooks = []seedBook{
	{
		ISBN:        "9780000000017",
		Title:       "The Dragon's Apprentice",
		Author:      "Mira Holt",
		Tags:        "fantasy, dragons, coming-of-age",
		Description: "A young smith is taken on by the last dragon as its apprentice and learns that fire remembers everything it touches.",
	},
	{
		ISBN:        "9780000000024",
		Title:       "Orbital Decay",
		Author:      "Janusz Kowalik",
		Tags:        "science fiction, space, thriller",
		Description: "A maintenance crew on a failing station discovers their orbit is being adjusted by someone on the ground.",
	},
	{
		ISBN:        "9780000000031",
		Title:       "A Field Guide to Quiet Places",
		Author:      "Elena Marsh",
		Tags:        "nature, essays, travel",
		Description: "Essays on forests, bogs and abandoned railway cuttings, and what grows back when people stop visiting.",
	},
	{
		ISBN:        "9780000000048",
		Title:       "The Cartographer's Debt",
		Author:      "Mira Holt",
		Tags:        "fantasy, maps, adventure",
		Description: "Every map she draws changes the land it depicts, and the land has started drawing back.",
	},
	{
		ISBN:        "9780000000055",
		Title:       "Sourdough and Steel",
		Author:      "Peter Anand",
		Tags:        "cooking, memoir",
		Description: "A baker's account of rebuilding a bakery inside a decommissioned shipyard, one oven at a time.",
	},
	{
		ISBN:        "9780000000062",
		Title:       "The Winter Ledger",
		Author:      "Astrid Noren",
		Tags:        "mystery, historical",
		Description: "An accountant in a snowbound trading town finds a second set of books written in her own handwriting.",
	},
	{
		ISBN:        "9780000000079",
		Title:       "Practical Beekeeping for Small Gardens",
		Author:      "Tomas Rivera",
		Tags:        "gardening, bees, howto",
		Description: "Keeping two hives healthy in a city garden, from first swarm to winter feeding.",
	},
	{
		ISBN:        "9780000000086",
		Title:       "Signals from the Deep",
		Author:      "Janusz Kowalik",
		Tags:        "science fiction, ocean, first-contact",
		Description: "A deep-sea acoustics team records a pattern in whale song that repeats with a checksum.",
	},
}

func seedCommand(c *cli.Context) error {
	books := sampleBooks
	if src := c.String("src"); src != "" {
		loaded, err := loadSeedFile(src)
		if err != nil {
			return err
		}
		books = loaded
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	added, skipped := 0, 0
	for _, book := range books {
		ebook := &core.Ebook{
			ISBN:        book.ISBN,
			Title:       book.Title,
			Author:      book.Author,
			Tags:        book.Tags,
			Description: book.Description,
		}
		if err := core.ValidateEbook(ebook); err != nil {
			return fmt.Errorf("invalid book %s: %w", book.ISBN, err)
		}
		if _, err := db.EbookRepository().AddEbooks(c.Context, ebook); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				skipped++
				continue
			}
			return fmt.Errorf("failed to add book %s: %w", book.ISBN, err)
		}
		added++
	}

	fmt.Printf("Added %d books, skipped %d already present\n", added, skipped)
	return nil
}

func loadSeedFile(path string) ([]seedBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var books []seedBook
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return books, nil
}
