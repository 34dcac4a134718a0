package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"cinehub/internal/microservices/http-api/dto"
)

const timeLayout = "2006-01-02 15:04:05"

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).Format(timeLayout)
}

func printTitleRow(t dto.TitleResponse) {
	rating := "  - "
	if t.RatingCount > 0 {
		rating = fmt.Sprintf("%4.1f", t.Rating)
	}
	year := "    "
	if t.Year > 0 {
		year = fmt.Sprintf("%d", t.Year)
	}
	fmt.Printf("%-36s  %s  %-6s  %s  %s\n", t.ID, year, t.Type, color.YellowString(rating), t.Title)
}

func printTitle(t dto.TitleResponse) {
	color.Cyan("%s", t.Title)
	fmt.Printf("ID:      %s\n", t.ID)
	fmt.Printf("Type:    %s\n", t.Type)
	if t.Year > 0 {
		fmt.Printf("Year:    %d\n", t.Year)
	}
	if t.Duration != nil {
		fmt.Printf("Length:  %d min\n", *t.Duration)
	}
	if t.Seasons != nil {
		fmt.Printf("Seasons: %d\n", *t.Seasons)
	}
	fmt.Printf("Rating:  %.1f (%d ratings)\n", t.Rating, t.RatingCount)
	if len(t.Genres) > 0 {
		fmt.Printf("Genres:  %s\n", strings.Join(t.Genres, ", "))
	}
	if t.Logline != "" {
		fmt.Printf("\n%s\n", t.Logline)
	}
}
