package browser

// Script names. Fake hosts switch on these.
const (
	ScriptReadyState      = "readyState"
	ScriptCount           = "count"
	ScriptClick           = "click"
	ScriptClickText       = "clickText"
	ScriptType            = "type"
	ScriptExtractListings = "extractListings"
	ScriptExtractReviews  = "extractReviews"
	ScriptExtractMenu     = "extractMenu"
)

// ButtonScope is the default set of elements searched by text matchers.
var ButtonScope = []string{"button", `div[role="button"]`, `[role="button"]`}

const readyStateSource = `() => document.readyState`

const countSource = `(selector) => document.querySelectorAll(selector).length`

const clickSource = `(selector) => {
  const el = document.querySelector(selector);
  if (!el) return false;
  el.scrollIntoView({block: "center"});
  el.click();
  return true;
}`

const clickTextSource = `(scope, labels, exact) => {
  const els = Array.from(document.querySelectorAll(scope.join(",")));
  for (const label of labels) {
    const want = label.trim().toUpperCase();
    for (const el of els) {
      const text = (el.innerText || el.textContent || "").trim();
      if (!text) continue;
      const upper = text.toUpperCase();
      if (exact ? upper === want : upper.includes(want)) {
        el.scrollIntoView({block: "center"});
        el.click();
        return text;
      }
    }
  }
  return "";
}`

const typeSource = `(selector, text, submit) => {
  const el = document.querySelector(selector);
  if (!el) return false;
  el.focus();
  el.click();
  const setter = Object.getOwnPropertyDescriptor(window.HTMLInputElement.prototype, "value").set;
  setter.call(el, text);
  el.dispatchEvent(new Event("input", {bubbles: true}));
  el.dispatchEvent(new Event("change", {bubbles: true}));
  if (submit) {
    for (const type of ["keydown", "keypress", "keyup"]) {
      el.dispatchEvent(new KeyboardEvent(type, {key: "Enter", code: "Enter", keyCode: 13, which: 13, bubbles: true}));
    }
    if (el.form) el.form.requestSubmit ? el.form.requestSubmit() : el.form.submit();
  }
  return true;
}`

const extractSource = `(spec) => {
  const pick = (root, sel) => {
    if (!sel) return "";
    const el = root.querySelector(sel);
    return el ? (el.innerText || el.textContent || "").trim() : "";
  };
  const cards = Array.from(document.querySelectorAll(spec.card));
  const items = [];
  for (const card of cards) {
    const row = {};
    for (const [field, sel] of Object.entries(spec.fields)) {
      row[field] = pick(card, sel);
    }
    items.push(row);
  }
  return {cards: cards.length, items: items};
}`

// Extraction describes how to read repeated cards from a page: Card selects
// each record and Fields maps an output field to a selector relative to it.
type Extraction struct {
	Card   string            `json:"card"`
	Fields map[string]string `json:"fields"`
}

// ExtractResult is the raw text of every card found by an Extraction.
type ExtractResult struct {
	Cards int                 `json:"cards"`
	Items []map[string]string `json:"items"`
}

func ReadyStateScript() Script {
	return Script{Name: ScriptReadyState, Source: readyStateSource}
}

func CountScript(selector string) Script {
	return Script{Name: ScriptCount, Source: countSource, Args: []any{selector}}
}

func ClickScript(selector string) Script {
	return Script{Name: ScriptClick, Source: clickSource, Args: []any{selector}}
}

// ClickTextScript clicks the first element in scope whose text matches one of
// labels, trying labels in order. It returns the clicked text or "".
func ClickTextScript(scope, labels []string, exact bool) Script {
	return Script{Name: ScriptClickText, Source: clickTextSource, Args: []any{scope, labels, exact}}
}

// TypeScript sets the value of the input and fires input, change and, when
// submit is set, Enter key events.
func TypeScript(selector, text string, submit bool) Script {
	return Script{Name: ScriptType, Source: typeSource, Args: []any{selector, text, submit}}
}

func ExtractListingsScript(e Extraction) Script {
	return Script{Name: ScriptExtractListings, Source: extractSource, Args: []any{e}}
}

func ExtractReviewsScript(e Extraction) Script {
	return Script{Name: ScriptExtractReviews, Source: extractSource, Args: []any{e}}
}

func ExtractMenuScript(e Extraction) Script {
	return Script{Name: ScriptExtractMenu, Source: extractSource, Args: []any{e}}
}
