package utils

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedRelease holds metadata extracted from a raw release filename.
//
// Seasons and Episodes are collections on purpose: release names can carry
// multiple episode numbers (S01E01E02, S01E01-E03) or none at all. Callers
// must normalize down to a single optional value; nothing downstream should
// ever see a list.
type ParsedRelease struct {
	Title    string
	Year     int
	Seasons  []int
	Episodes []int
}

var (
	// S01E02, S01E01E02, S01E01-E03
	sxxExxRegex  = regexp.MustCompile(`(?i)\bs(\d{1,2})((?:[\s._-]*e\d{1,3})+)`)
	episodeRegex = regexp.MustCompile(`(?i)e(\d{1,3})`)
	// 1x02
	crossRegex = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	// Season 1 Episode 2
	verboseRegex = regexp.MustCompile(`(?i)\bseason[\s._-]*(\d{1,2})[\s._-]*episode[\s._-]*(\d{1,3})\b`)
	// Delimited 4-digit year, e.g. (2009), .2009., [2009]
	releaseYearRegex = regexp.MustCompile(`(?:^|[\s._\-(\[])((?:19|20)\d{2})(?:[\s._\-)\]]|$)`)
	containerRegex   = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|ts|m2ts|wmv|nzb)$`)
	separatorRegex   = regexp.MustCompile(`[._]`)
	spaceRegex       = regexp.MustCompile(`\s+`)
	punctRegex       = regexp.MustCompile(`[^\w\s]`)
)

// Quality/codec/source tokens stripped from titles before matching
var releaseTokens = map[string]bool{
	"480p": true, "576p": true, "720p": true, "1080p": true, "1080i": true,
	"2160p": true, "4k": true, "uhd": true, "hdr": true, "hdr10": true, "dv": true,
	"x264": true, "x265": true, "h264": true, "h265": true, "hevc": true, "avc": true,
	"xvid": true, "divx": true, "10bit": true, "8bit": true,
	"aac": true, "ac3": true, "eac3": true, "dts": true, "truehd": true,
	"atmos": true, "flac": true, "mp3": true, "opus": true,
	"bluray": true, "bdrip": true, "brrip": true, "bdremux": true, "remux": true,
	"webrip": true, "webdl": true, "web": true, "hdtv": true, "pdtv": true,
	"dvdrip": true, "dvd": true, "hdrip": true,
	"proper": true, "repack": true, "rerip": true, "internal": true,
	"extended": true, "unrated": true, "remastered": true, "limited": true,
	"multi": true, "subbed": true, "dubbed": true,
	"mkv": true, "mp4": true, "avi": true,
}

// ParseRelease extracts a cleaned title, optional year and season/episode
// numbers from a raw release filename like "Show.Name.S06E18.1080p.mkv".
func ParseRelease(name string) ParsedRelease {
	base := containerRegex.ReplaceAllString(name, "")

	parsed := ParsedRelease{}
	titleEnd := len(base)

	if loc := sxxExxRegex.FindStringSubmatchIndex(base); loc != nil {
		season, _ := strconv.Atoi(base[loc[2]:loc[3]])
		parsed.Seasons = append(parsed.Seasons, season)
		for _, m := range episodeRegex.FindAllStringSubmatch(base[loc[4]:loc[5]], -1) {
			if ep, err := strconv.Atoi(m[1]); err == nil {
				parsed.Episodes = append(parsed.Episodes, ep)
			}
		}
		titleEnd = loc[0]
	} else if loc := crossRegex.FindStringSubmatchIndex(base); loc != nil {
		season, _ := strconv.Atoi(base[loc[2]:loc[3]])
		episode, _ := strconv.Atoi(base[loc[4]:loc[5]])
		parsed.Seasons = append(parsed.Seasons, season)
		parsed.Episodes = append(parsed.Episodes, episode)
		titleEnd = loc[0]
	} else if loc := verboseRegex.FindStringSubmatchIndex(base); loc != nil {
		season, _ := strconv.Atoi(base[loc[2]:loc[3]])
		episode, _ := strconv.Atoi(base[loc[4]:loc[5]])
		parsed.Seasons = append(parsed.Seasons, season)
		parsed.Episodes = append(parsed.Episodes, episode)
		titleEnd = loc[0]
	}

	if loc := releaseYearRegex.FindStringSubmatchIndex(base); loc != nil {
		if year, err := strconv.Atoi(base[loc[2]:loc[3]]); err == nil {
			parsed.Year = year
			if loc[0] < titleEnd {
				titleEnd = loc[0]
			}
		}
	}

	parsed.Title = CleanTitle(base[:titleEnd])
	return parsed
}

// CleanTitle normalizes a title for comparison: separators to spaces,
// punctuation and quality/codec/source tokens removed, lowercased.
func CleanTitle(title string) string {
	title = separatorRegex.ReplaceAllString(title, " ")
	title = punctRegex.ReplaceAllString(title, " ")
	title = strings.ToLower(title)

	words := strings.Fields(title)
	kept := words[:0]
	for _, w := range words {
		if !releaseTokens[w] {
			kept = append(kept, w)
		}
	}

	return spaceRegex.ReplaceAllString(strings.TrimSpace(strings.Join(kept, " ")), " ")
}
