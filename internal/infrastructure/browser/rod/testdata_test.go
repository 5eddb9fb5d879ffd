package rod

const (
	BasicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Shop</title></head>
<body>
	<h1>Hello Shopper</h1>
</body>
</html>`

	SearchHTML = `<!DOCTYPE html>
<html>
<body>
	<form id="search" onsubmit="document.getElementById('result').textContent = 'searched:' + document.getElementById('q').value; return false;">
		<input id="q" type="text" name="q" placeholder="Search products" value="old" />
		<button id="go" type="submit">Search</button>
	</form>
	<div id="result"></div>
</body>
</html>`

	ProductHTML = `<!DOCTYPE html>
<html>
<body>
	<button id="add" aria-label="Add to Cart">Add to Cart</button>
	<button id="disabled" disabled>Sold out</button>
	<button id="hidden" style="display:none">Hidden</button>
	<div id="result"></div>
	<script>
		document.getElementById('add').addEventListener('click', function() {
			document.getElementById('result').textContent = 'added';
		});
	</script>
</body>
</html>`

	OverlayHTML = `<!DOCTYPE html>
<html>
<body>
	<button id="covered" style="position:absolute;top:10px;left:10px;width:100px;height:40px">Buy</button>
	<div id="overlay" style="position:absolute;top:0;left:0;width:400px;height:200px;z-index:10"></div>
	<div id="result"></div>
	<script>
		document.getElementById('covered').addEventListener('click', function() {
			document.getElementById('result').textContent = 'clicked';
		});
	</script>
</body>
</html>`

	ScrollableHTML = `<!DOCTYPE html>
<html>
<body style="height: 5000px;">
	<h1 id="top">Top of Page</h1>
	<div style="margin-top: 2000px;" id="middle">Middle</div>
</body>
</html>`
)
