package generator

import (
	"fmt"
	"io"
)

// Example is a named prompt that can be used instead of writing one.
type Example struct {
	Name   string
	Prompt string
}

// Examples lists the built-in prompts in display order.
var Examples = []Example{
	{"todo-api", "REST API for managing todo tasks with SQLite and full CRUD. FastAPI + SQLAlchemy. Endpoints: GET/POST/PUT/DELETE /tasks"},
	{"blog-api", "Blog API with posts and comments. FastAPI + SQLite. Endpoints: GET/POST /posts, GET/POST /posts/{id}/comments, DELETE /posts/{id}"},
	{"url-shortener", "URL shortener with FastAPI and SQLite. POST /shorten accepts {url} and returns {short_url}. GET /{code} redirects with 301."},
	{"user-auth", "User authentication API. FastAPI + SQLite + passlib. POST /register, POST /login (returns a JWT), GET /me (requires the token)"},
	{"notes-api", "Notes API with tags. FastAPI + SQLite. CRUD for /notes, filtering by tag, full-text search"},
	{"inventory-api", "Inventory management API. FastAPI + SQLite. Products, categories, stock levels, change history"},

	{"calculator-api", "Calculator REST API. FastAPI. POST /calculate with {operation, a, b}. Supports +, -, *, /, sqrt, pow"},
	{"file-server", "File server with FastAPI. POST /upload (multipart), GET /files (list), GET /files/{name} (download), DELETE /files/{name}"},
	{"image-resize", "Image resizing API. FastAPI + Pillow. POST /resize with an image and dimensions returns the scaled image"},
	{"qr-generator", "QR code generator. FastAPI + qrcode. POST /generate with {text} returns a PNG of the QR code"},

	{"weather-cli", "Weather CLI. Typer + requests. Fetches data from wttr.in. Colored output with rich."},
	{"file-organizer", "File organizer CLI. Typer + rich. Sorts files into subfolders by extension."},
	{"csv-analyzer", "CSV analysis CLI. Typer + pandas + rich. Statistics, filtering, export."},

	{"chat-websocket", "Simple WebSocket chat. FastAPI + websockets. /ws endpoint for connections, broadcasts messages."},
	{"pastebin", "Pastebin clone. FastAPI + SQLite. POST /paste creates a paste, GET /paste/{id} returns it with syntax highlighting"},
	{"link-checker", "Link checking API. FastAPI + httpx. POST /check with {urls[]} returns the status of each URL"},
}

// ExamplePrompt returns the prompt registered under name. An unknown name
// is returned unchanged so that it is used as the prompt itself.
func ExamplePrompt(name string) string {
	for _, e := range Examples {
		if e.Name == name {
			return e.Prompt
		}
	}
	return name
}

// PrintExamples writes the example list with a usage line.
func PrintExamples(w io.Writer) {
	fmt.Fprint(w, "\nAvailable example prompts:\n\n")
	for _, e := range Examples {
		fmt.Fprintf(w, "  %-15s - %s\n", e.Name, e.Prompt)
	}
	fmt.Fprint(w, "\nUsage: markpact -e todo-api -o my-project/README.md\n")
}
