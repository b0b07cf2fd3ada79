package bot

import (
	"fmt"
	"strconv"
	"strings"

	"dealwatch/internal/model"
)

// ParseWatchArgs parses arguments for /watch.
// Format: <terms, comma separated> [-p price] [-r radius] [-d days] [-ch channel] [-ctx context...]
// The terms run up to the first flag; everything after -ctx up to the next
// flag becomes the free-text context.
func ParseWatchArgs(args string) (model.SearchConfig, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return model.SearchConfig{}, fmt.Errorf("usage: /watch <terms,...> [-p price] [-r radius] [-d days] [-ch channel] [-ctx context]")
	}

	var termTokens []string
	i := 0
	for ; i < len(fields) && !strings.HasPrefix(fields[i], "-"); i++ {
		termTokens = append(termTokens, fields[i])
	}
	if len(termTokens) == 0 {
		return model.SearchConfig{}, fmt.Errorf("at least one search term is required")
	}

	var terms []string
	for _, t := range strings.Split(strings.Join(termTokens, " "), ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return model.SearchConfig{}, fmt.Errorf("at least one search term is required")
	}

	search := model.SearchConfig{
		ID:         strings.ReplaceAll(strings.ToLower(terms[0]), " ", "_"),
		Terms:      terms,
		CityCode:   model.DefaultCityCode,
		City:       model.DefaultCity,
		DaysListed: model.DefaultDaysListed,
		Radius:     model.DefaultRadius,
	}

	for i < len(fields) {
		flag := fields[i]
		i++

		if flag == "-ctx" {
			var ctxTokens []string
			for ; i < len(fields) && !strings.HasPrefix(fields[i], "-"); i++ {
				ctxTokens = append(ctxTokens, fields[i])
			}
			search.Context = strings.Join(ctxTokens, " ")
			continue
		}

		if i >= len(fields) {
			return model.SearchConfig{}, fmt.Errorf("flag %s requires a value", flag)
		}
		value := fields[i]
		i++

		switch flag {
		case "-p":
			search.TargetPrice = value
		case "-r":
			r, err := strconv.Atoi(value)
			if err != nil || r < 1 {
				return model.SearchConfig{}, fmt.Errorf("invalid radius %q", value)
			}
			search.Radius = r
		case "-d":
			d, err := strconv.Atoi(value)
			if err != nil || d < 1 {
				return model.SearchConfig{}, fmt.Errorf("invalid days %q", value)
			}
			search.DaysListed = d
		case "-ch":
			ch, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return model.SearchConfig{}, fmt.Errorf("invalid channel id %q", value)
			}
			search.Channel = ch
		default:
			return model.SearchConfig{}, fmt.Errorf("unknown flag %s", flag)
		}
	}

	return search, nil
}

// ParseIDArg extracts a search ID from a command argument string.
func ParseIDArg(args string) (string, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return "", fmt.Errorf("search ID is required")
	}
	return strings.Fields(s)[0], nil
}

// ParseFeedChannelArg parses the /feedchannel argument: a channel ID or "off".
// An empty argument returns ok=false, meaning "show the current value".
func ParseFeedChannelArg(args string) (channelID int64, ok bool, err error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, false, nil
	}
	if strings.EqualFold(s, "off") {
		return 0, true, nil
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid channel id %q", s)
	}
	return id, true, nil
}
