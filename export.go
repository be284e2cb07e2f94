package slidestudio

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"
	"time"
)

// ExportVersion is the version written to deck export files.
const ExportVersion = 2

// Export is the portable JSON form of a deck.
type Export struct {
	Version    int       `json:"version"`
	DeckTitle  string    `json:"deckTitle"`
	Slides     []Slide   `json:"slides"`
	ExportedAt time.Time `json:"exportedAt"`
}

// WriteJSON writes the deck as an indented export file.
func (d *Deck) WriteJSON(w io.Writer, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Export{
		Version:    ExportVersion,
		DeckTitle:  d.Title,
		Slides:     d.Slides,
		ExportedAt: now.UTC(),
	})
}

// ReadJSON parses an export file. Any version is accepted as long as the
// file has slides; missing fields get defaults.
func ReadJSON(r io.Reader) (*Deck, error) {
	var raw struct {
		DeckTitle string `json:"deckTitle"`
		Slides    []struct {
			ID         string          `json:"id"`
			Title      string          `json:"title"`
			Code       json.RawMessage `json:"code"`
			Notes      string          `json:"notes"`
			Transition string          `json:"transition"`
		} `json:"slides"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, &DeckError{Op: "import", Err: fmt.Errorf("%w: %v", ErrInvalidDeck, err)}
	}
	if len(raw.Slides) == 0 {
		return nil, &DeckError{Op: "import", Err: fmt.Errorf("%w: no slides", ErrInvalidDeck),
			Hint: "Export files contain a non-empty \"slides\" array."}
	}

	d := &Deck{Title: raw.DeckTitle}
	if strings.TrimSpace(d.Title) == "" {
		d.Title = "Imported Deck"
	}
	for i, s := range raw.Slides {
		var code string
		// Non-string code degrades to an empty slide.
		_ = json.Unmarshal(s.Code, &code)
		title := s.Title
		if title == "" {
			title = fmt.Sprintf("Slide %d", i+1)
		}
		d.Slides = append(d.Slides, Slide{
			ID:         s.ID,
			Title:      title,
			Code:       code,
			Notes:      s.Notes,
			Transition: s.Transition,
		})
	}
	d.Normalize()
	return d, nil
}

// WriteHTML writes a standalone HTML player for the deck: every slide in a
// sandboxed iframe with keyboard navigation.
func (d *Deck) WriteHTML(w io.Writer) error {
	var b strings.Builder
	b.WriteString("<!doctype html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(d.Title))
	b.WriteString(`<style>
*{margin:0;padding:0;box-sizing:border-box}
body{background:#000;height:100vh;overflow:hidden;font-family:system-ui,sans-serif}
.slide{width:100vw;height:100vh;display:none}
.slide iframe{width:100%;height:100%;border:none}
.prog{position:fixed;top:0;left:0;height:3px;background:#6366f1;transition:width .3s;z-index:9}
.hud{position:fixed;bottom:18px;left:50%;transform:translateX(-50%);display:flex;align-items:center;gap:10px;background:rgba(0,0,0,.8);border-radius:100px;padding:8px 16px;opacity:0;transition:opacity .3s;z-index:9}
body:hover .hud{opacity:1}
.hud button{background:rgba(255,255,255,.12);border:none;color:#fff;padding:5px 14px;border-radius:100px;cursor:pointer;font-size:13px}
.hud button:disabled{opacity:.3;cursor:default}
#ctr{color:rgba(255,255,255,.6);font-size:13px;min-width:54px;text-align:center}
</style>
</head>
<body>
<div class="prog" id="prog"></div>
`)
	for i, s := range d.Slides {
		fmt.Fprintf(&b, "<div class=\"slide\" id=\"s%d\"><iframe sandbox=\"allow-scripts\" srcdoc=\"%s\"></iframe></div>\n",
			i, html.EscapeString(s.Code))
	}
	fmt.Fprintf(&b, `<div class="hud"><button id="prev" onclick="go(-1)">&larr; Prev</button><span id="ctr">1 / %[1]d</span><button id="next" onclick="go(1)">Next &rarr;</button></div>
<script>
var cur=0,total=%[1]d;
function show(n){
  document.getElementById('s'+cur).style.display='none';
  cur=Math.max(0,Math.min(n,total-1));
  document.getElementById('s'+cur).style.display='block';
  document.getElementById('ctr').textContent=(cur+1)+' / '+total;
  document.getElementById('prog').style.width=((cur+1)/total*100)+'%%';
  document.getElementById('prev').disabled=cur===0;
  document.getElementById('next').disabled=cur===total-1;
}
function go(d){show(cur+d);}
document.addEventListener('keydown',function(e){
  if(e.key==='ArrowRight'||e.key===' '){e.preventDefault();go(1);}
  if(e.key==='ArrowLeft'){e.preventDefault();go(-1);}
});
show(0);
</script>
</body>
</html>
`, len(d.Slides))
	_, err := io.WriteString(w, b.String())
	return err
}
