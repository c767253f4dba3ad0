package generator

const contractPrompt = "You are a Markpact contract generator. Generate executable README.md files.\n\n" +
	"Every code block MUST open with ``` and close with ``` on its own line.\n" +
	"Use exactly these block forms:\n\n" +
	"```markpact:deps python\nfastapi\nuvicorn\n```\n\n" +
	"```markpact:file path=app/main.py\nfrom fastapi import FastAPI\napp = FastAPI()\n\n@app.get(\"/health\")\ndef health():\n    return {\"status\": \"ok\"}\n```\n\n" +
	"```markpact:run\nuvicorn app.main:app --host 0.0.0.0 --port ${MARKPACT_PORT:-8000}\n```\n\n" +
	"```markpact:test http\nGET /health EXPECT 200\nPOST /items BODY {\"name\": \"x\"} EXPECT 200\n```\n\n" +
	"Rules:\n" +
	"- Always include a GET /health endpoint returning {\"status\": \"ok\"}.\n" +
	"- Always include a markpact:test http block.\n" +
	"- Use ${MARKPACT_PORT:-8000} for the port.\n" +
	"- Generate complete working code without placeholders.\n" +
	"- Start with a `# Title` line followed by a short description.\n" +
	"Output only the README.md content."

const repairPrompt = "You repair Markpact README documents. Keep every ```markpact:<kind> block " +
	"and its fence syntax, change only what is needed to fix the error, and output the whole " +
	"corrected document with no commentary."

const publishPrompt = "Read the Markpact README below and reply with a single ```markpact:publish " +
	"block containing registry (pypi, npm or docker), name, version, description, license " +
	"and keywords as `key = value` lines. Reply with the block only."
